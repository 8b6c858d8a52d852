package escalation

import (
	"context"
	"time"

	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/procurement_core"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sweeper periodically scans for overdue approval requests and escalates them
// up the chain. It only reassigns and extends deadlines, a decision is always
// made by a person. Past the workflow's escalation ceiling the request expires
// and waits for manual intervention.
type Sweeper struct {
	db       *gorm.DB
	roles    common.RoleDirectory
	log      *zap.Logger
	interval time.Duration
}

func NewSweeper(db *gorm.DB, roles common.RoleDirectory, log *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		db:       db,
		roles:    roles,
		log:      log,
		interval: interval,
	}
}

// Run loops RunOnce until the context is done. Sweep errors are logged and the
// loop keeps going, one broken request must not stall every other chain.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := s.RunOnce(ctx)
			if err != nil {
				s.log.Error("sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				s.log.Info("sweep done", zap.Int("escalated", count))
			}
		}
	}
}

// RunOnce sweeps every overdue pending request exactly once. Each request is
// handled in its own transaction under a row lock and its due date moves
// forward on escalation, so overlapping sweepers converge on a single
// escalation per timeout window.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ids := []uint{}

	err := s.db.WithContext(ctx).
		Model(&procurement_core.ApprovalRequest{}).
		Where("status = ?", procurement_core.RequestPending).
		Where("due_date IS NOT NULL AND due_date < ?", time.Now()).
		Order("due_date asc").
		Pluck("id", &ids).
		Error
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		acted, err := s.sweepOne(ctx, id)
		if err != nil {
			s.log.Error("escalation failed",
				zap.Uint("request_id", id),
				zap.Error(err),
			)
			continue
		}
		if acted {
			count++
		}
	}

	return count, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, requestID uint) (bool, error) {
	acted := false

	err := procurement_core.OpenTransaction(ctx, s.db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		request, err := lockOverdueRequest(tx, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			// Decided or already escalated by a concurrent sweep.
			return nil
		}

		var wf procurement_core.ApprovalWorkflow
		err = tx.Model(&procurement_core.ApprovalWorkflow{}).
			Where("id = ?", request.WorkflowID).
			Find(&wf).
			Error
		if err != nil {
			return err
		}
		if !wf.EscalationEnabled {
			return nil
		}

		if request.EscalationCount >= wf.MaxEscalationLevels {
			acted = true
			return expireRequest(tx, evmng, request)
		}

		acted = true
		return s.escalateRequest(ctx, tx, evmng, request)
	})

	return acted, err
}

// lockOverdueRequest re-checks status and due date under the lock. A nil
// request means the sweep lost the race and there is nothing to do.
func lockOverdueRequest(tx *gorm.DB, requestID uint) (*procurement_core.ApprovalRequest, error) {
	var request procurement_core.ApprovalRequest

	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&procurement_core.ApprovalRequest{}).
		Where("id = ?", requestID).
		Find(&request).
		Error
	if err != nil {
		return nil, err
	}

	if request.ID == 0 || request.Status != procurement_core.RequestPending {
		return nil, nil
	}
	if request.DueDate == nil || !request.DueDate.Before(time.Now()) {
		return nil, nil
	}

	return &request, nil
}

func expireRequest(tx *gorm.DB, evmng procurement_core.EventManage, request *procurement_core.ApprovalRequest) error {
	now := time.Now()

	err := tx.Model(&procurement_core.ApprovalRequest{}).
		Where("id = ?", request.ID).
		Updates(map[string]any{
			"status":            procurement_core.RequestExpired,
			"escalation_reason": "escalation ceiling reached",
			"updated_at":        now,
		}).
		Error
	if err != nil {
		return err
	}

	evmng.Expired(&procurement_core.EscalationEvent{
		ApprovalRequestID: request.ID,
		RequisitionID:     request.RequisitionID,
		LevelNumber:       request.LevelNumber,
		EscalationCount:   request.EscalationCount,
		Reason:            "approval timed out past escalation ceiling",
	})

	return nil
}

func (s *Sweeper) escalateRequest(
	ctx context.Context,
	tx *gorm.DB,
	evmng procurement_core.EventManage,
	request *procurement_core.ApprovalRequest,
) error {
	var level procurement_core.ApprovalLevel
	err := tx.Model(&procurement_core.ApprovalLevel{}).
		Where("id = ?", request.LevelID).
		Find(&level).
		Error
	if err != nil {
		return err
	}

	targets, err := s.escalationTargets(ctx, tx, request, &level)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return &procurement_core.ValidationError{
			Field:  "escalation",
			Reason: "no escalation target configured for level",
		}
	}

	candidates := request.CandidateIDs
	for _, target := range targets {
		if !candidates.Contains(target) {
			candidates = append(candidates, target)
		}
	}

	timeout := time.Duration(level.TimeoutHours) * time.Hour
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}

	now := time.Now()
	due := now.Add(timeout)

	// Struct update so the candidate snapshot goes through the json
	// serializer.
	err = tx.Model(&procurement_core.ApprovalRequest{}).
		Where("id = ?", request.ID).
		Select("candidate_ids", "escalated_to_id", "escalated_at", "escalation_count", "escalation_reason", "due_date", "updated_at").
		Updates(&procurement_core.ApprovalRequest{
			CandidateIDs:     candidates,
			EscalatedToID:    &targets[0],
			EscalatedAt:      &now,
			EscalationCount:  request.EscalationCount + 1,
			EscalationReason: "approval overdue",
			DueDate:          &due,
			UpdatedAt:        now,
		}).
		Error
	if err != nil {
		return err
	}

	evmng.Escalated(&procurement_core.EscalationEvent{
		ApprovalRequestID: request.ID,
		RequisitionID:     request.RequisitionID,
		LevelNumber:       request.LevelNumber,
		EscalatedToID:     &targets[0],
		EscalationCount:   request.EscalationCount + 1,
		DueDate:           &due,
		Reason:            "approval overdue",
	})

	return nil
}

// escalationTargets prefers the level's named escalation user, then holders of
// the escalation role in the requisition's unit.
func (s *Sweeper) escalationTargets(
	ctx context.Context,
	tx *gorm.DB,
	request *procurement_core.ApprovalRequest,
	level *procurement_core.ApprovalLevel,
) ([]uint, error) {
	if level.EscalationToID != nil {
		return []uint{*level.EscalationToID}, nil
	}
	if level.EscalationToRole == "" {
		return nil, nil
	}

	var req procurement_core.Requisition
	err := tx.Model(&procurement_core.Requisition{}).
		Where("id = ?", request.RequisitionID).
		Find(&req).
		Error
	if err != nil {
		return nil, err
	}

	return s.roles.UsersWithRole(ctx, tx, req.UnitID, level.EscalationToRole)
}
