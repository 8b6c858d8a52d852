package workflow

import (
	"context"
	"fmt"

	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/procurement_core"
	"gorm.io/gorm"
)

type ResolveQuery struct {
	DocumentType procurement_core.DocType
	UnitID       uint
	Category     string
	Amount       float64
	Currency     string
}

// ResolvedLevel carries an approval level together with the candidate set
// snapshotted at resolution time.
type ResolvedLevel struct {
	Level             *procurement_core.ApprovalLevel
	CandidateIDs      []uint
	ApprovalsRequired int
	AssignedRole      string
}

type Resolution struct {
	Workflow *procurement_core.ApprovalWorkflow
	Levels   []*ResolvedLevel
}

type Resolver struct {
	roles common.RoleDirectory
}

func NewResolver(roles common.RoleDirectory) *Resolver {
	return &Resolver{
		roles: roles,
	}
}

// Resolve selects the applicable workflow for the document and materializes
// its levels. Specificity tiers: unit+category beats unit which beats the
// global default; more than one match inside the winning tier is a
// configuration error and fails closed.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, q *ResolveQuery) (*Resolution, error) {
	wf, err := r.matchWorkflow(tx, q)
	if err != nil {
		return nil, err
	}

	levels := []*procurement_core.ApprovalLevel{}
	err = tx.Model(&procurement_core.ApprovalLevel{}).
		Where("workflow_id = ?", wf.ID).
		Where("is_active = ?", true).
		Order("level_number asc").
		Find(&levels).
		Error
	if err != nil {
		return nil, err
	}

	res := Resolution{
		Workflow: wf,
	}

	for _, level := range levels {
		if level.AmountThreshold != nil && q.Amount < *level.AmountThreshold {
			continue
		}

		resolved, err := r.expandLevel(ctx, tx, q.UnitID, level)
		if err != nil {
			return nil, err
		}

		res.Levels = append(res.Levels, resolved)
	}

	return &res, nil
}

func (r *Resolver) matchWorkflow(tx *gorm.DB, q *ResolveQuery) (*procurement_core.ApprovalWorkflow, error) {
	candidates := []*procurement_core.ApprovalWorkflow{}

	err := tx.Model(&procurement_core.ApprovalWorkflow{}).
		Where("document_type = ?", q.DocumentType).
		Where("is_active = ?", true).
		Where("amount_min <= ?", q.Amount).
		Where("(amount_max IS NULL OR amount_max >= ?)", q.Amount).
		Where("currency = ?", q.Currency).
		Find(&candidates).
		Error
	if err != nil {
		return nil, err
	}

	var tierUnitCategory []*procurement_core.ApprovalWorkflow
	var tierUnit []*procurement_core.ApprovalWorkflow
	var tierGlobal []*procurement_core.ApprovalWorkflow

	for _, wf := range candidates {
		switch {
		case wf.UnitID != nil && *wf.UnitID == q.UnitID && wf.Category != nil:
			if *wf.Category == q.Category {
				tierUnitCategory = append(tierUnitCategory, wf)
			}
		case wf.UnitID != nil && *wf.UnitID == q.UnitID && wf.Category == nil:
			tierUnit = append(tierUnit, wf)
		case wf.UnitID == nil && wf.IsDefault:
			tierGlobal = append(tierGlobal, wf)
		}
	}

	for _, tier := range [][]*procurement_core.ApprovalWorkflow{tierUnitCategory, tierUnit, tierGlobal} {
		switch len(tier) {
		case 0:
			continue
		case 1:
			return tier[0], nil
		default:
			ids := []uint{}
			for _, wf := range tier {
				ids = append(ids, wf.ID)
			}
			return nil, &procurement_core.AmbiguousWorkflowError{
				DocumentType: string(q.DocumentType),
				UnitID:       q.UnitID,
				Amount:       q.Amount,
				WorkflowIDs:  ids,
			}
		}
	}

	return nil, &procurement_core.ValidationError{
		Field:  "workflow",
		Reason: fmt.Sprintf("no workflow configured for %s in unit %d", q.DocumentType, q.UnitID),
	}
}

// expandLevel turns the approver rule into a concrete candidate set. Role
// lookups stay on the resolving transaction, later role changes never touch a
// chain resolved before them. An empty set fails closed, assigning nobody
// silently helps no one.
func (r *Resolver) expandLevel(ctx context.Context, tx *gorm.DB, unitID uint, level *procurement_core.ApprovalLevel) (*ResolvedLevel, error) {
	resolved := ResolvedLevel{
		Level:        level,
		AssignedRole: level.RequiredRole,
	}

	switch level.RuleType {
	case procurement_core.RuleSpecificUser:
		resolved.CandidateIDs = []uint{*level.RequiredUserID}
		resolved.ApprovalsRequired = 1

	case procurement_core.RuleAnyOfRole:
		users, err := r.roles.UsersWithRole(ctx, tx, unitID, level.RequiredRole)
		if err != nil {
			return nil, err
		}
		resolved.CandidateIDs = users
		resolved.ApprovalsRequired = level.ApproversRequired

	case procurement_core.RuleAllOfRole:
		users, err := r.roles.UsersWithRole(ctx, tx, unitID, level.RequiredRole)
		if err != nil {
			return nil, err
		}
		resolved.CandidateIDs = users
		resolved.ApprovalsRequired = len(users)

	default:
		return nil, &procurement_core.ValidationError{
			Field:  "rule_type",
			Reason: "unknown approver rule " + string(level.RuleType),
		}
	}

	if len(resolved.CandidateIDs) == 0 {
		return nil, &procurement_core.ValidationError{
			Field:  "approval_level",
			Reason: fmt.Sprintf("level %d resolves to no candidates", level.LevelNumber),
		}
	}

	if resolved.ApprovalsRequired > len(resolved.CandidateIDs) {
		return nil, &procurement_core.ValidationError{
			Field:  "approvers_required",
			Reason: fmt.Sprintf("level %d requires %d approvers but only %d candidates resolve",
				level.LevelNumber, resolved.ApprovalsRequired, len(resolved.CandidateIDs)),
		}
	}

	return &resolved, nil
}
