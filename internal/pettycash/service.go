package pettycash

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/treasury-core/internal/fault"
	"github.com/example/treasury-core/internal/funds"
	"github.com/example/treasury-core/pkg/audit"
)

const module = "pettycash"

// FundLedger is the slice of the fund account service the petty-cash service
// needs: posting the bank-side leg of a box funding and reversing it when a
// later step fails.
type FundLedger interface {
	GetAccount(ctx context.Context, id string) (*funds.Account, error)
	PostMovement(ctx context.Context, req funds.PostMovementRequest) (*funds.FundMovement, error)
	ReverseMovement(ctx context.Context, id, actorID string) error
}

// Service is the petty-cash service. It manages imprest boxes in two levels
// (a central box funded from a bank account, sub-boxes funded from the
// central box), their cash movements, reimbursement batches, and closings.
type Service struct {
	boxes          BoxStore
	movements      CashMovementStore
	reimbursements ReimbursementStore
	closings       ClosingStore
	ledger         FundLedger
	recorder       audit.Recorder
	logger         *slog.Logger
	now            func() time.Time
}

// NewService creates the petty-cash service. recorder may be nil to disable
// audit emission.
func NewService(boxes BoxStore, movements CashMovementStore, reimbursements ReimbursementStore, closings ClosingStore, ledger FundLedger, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		boxes:          boxes,
		movements:      movements,
		reimbursements: reimbursements,
		closings:       closings,
		ledger:         ledger,
		recorder:       recorder,
		logger:         logger,
		now:            time.Now,
	}
}

// CreateBoxRequest holds parameters for creating a cash box.
type CreateBoxRequest struct {
	Name             string
	Level            BoxLevel
	ParentID         string
	FundingAccountID string
	Responsible      string
	ViewerID         string
	Currency         string
	Ceiling          decimal.Decimal
	OpeningBalance   decimal.Decimal
	ActorID          string
}

// CreateBox creates a cash box. A sub box must reference an active central box
// in the same currency; the level is fixed at creation. Only central boxes
// carry a funding account and an opening balance; sub boxes start at zero and
// receive cash through transfers.
func (s *Service) CreateBox(ctx context.Context, req CreateBoxRequest) (*CashBox, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fault.Validationf("box name is required")
	}
	if !req.Level.Valid() {
		return nil, fault.Validationf("invalid box level: %s", req.Level)
	}
	if len(req.Currency) != 3 {
		return nil, fault.Validationf("currency code must be exactly 3 characters")
	}
	if req.Ceiling.IsNegative() {
		return nil, fault.Validationf("ceiling cannot be negative")
	}

	switch req.Level {
	case LevelCentral:
		if req.ParentID != "" {
			return nil, fault.Validationf("central boxes cannot have a parent")
		}
	case LevelSub:
		if req.ParentID == "" {
			return nil, fault.Validationf("sub boxes require a parent box")
		}
		if req.FundingAccountID != "" {
			return nil, fault.Validationf("only central boxes link a funding account")
		}
		if !req.OpeningBalance.IsZero() {
			return nil, fault.Validationf("sub boxes start at zero; fund them from the central box")
		}
		parent, err := s.boxes.Get(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Level != LevelCentral {
			return nil, fault.Validationf("parent box %q is not a central box", parent.Name)
		}
		if parent.Currency != req.Currency {
			return nil, fault.Validationf("sub box currency %s does not match parent currency %s", req.Currency, parent.Currency)
		}
	}

	box := &CashBox{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Level:            req.Level,
		ParentID:         req.ParentID,
		FundingAccountID: req.FundingAccountID,
		Responsible:      req.Responsible,
		ViewerID:         req.ViewerID,
		Currency:         req.Currency,
		Ceiling:          req.Ceiling,
		OpeningBalance:   req.OpeningBalance,
		Balance:          req.OpeningBalance,
		Status:           StatusActive,
		CreatedAt:        s.now(),
		CreatedBy:        req.ActorID,
	}

	if err := s.boxes.Insert(ctx, box); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to create box")
	}

	s.emit(ctx, "create_box", fmt.Sprintf("%s box %q created (%s)", box.Level, box.Name, box.Currency), box.ID, "cash_box", req.ActorID, nil)
	return box, nil
}

// GetBox retrieves a cash box by id.
func (s *Service) GetBox(ctx context.Context, id string) (*CashBox, error) {
	if id == "" {
		return nil, fault.Validationf("box id is required")
	}
	return s.boxes.Get(ctx, id)
}

// ListBoxes retrieves boxes with optional filtering.
func (s *Service) ListBoxes(ctx context.Context, f BoxFilter) ([]*CashBox, error) {
	return s.boxes.List(ctx, f)
}

// UpdateBoxRequest carries the mutable box fields. Nil means leave unchanged.
// The level and currency of a box are fixed at creation.
type UpdateBoxRequest struct {
	Name             *string
	Responsible      *string
	ViewerID         *string
	FundingAccountID *string
	Ceiling          *decimal.Decimal
	ActorID          string
}

// UpdateBox updates a box's mutable fields.
func (s *Service) UpdateBox(ctx context.Context, id string, req UpdateBoxRequest) (*CashBox, error) {
	box, err := s.boxes.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fault.Validationf("box name is required")
		}
		box.Name = *req.Name
	}
	if req.Responsible != nil {
		box.Responsible = *req.Responsible
	}
	if req.ViewerID != nil {
		box.ViewerID = *req.ViewerID
	}
	if req.FundingAccountID != nil {
		if box.Level != LevelCentral && *req.FundingAccountID != "" {
			return nil, fault.Validationf("only central boxes link a funding account")
		}
		box.FundingAccountID = *req.FundingAccountID
	}
	if req.Ceiling != nil {
		if req.Ceiling.IsNegative() {
			return nil, fault.Validationf("ceiling cannot be negative")
		}
		box.Ceiling = *req.Ceiling
	}

	if err := s.boxes.Update(ctx, box); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to update box")
	}

	s.emit(ctx, "update_box", fmt.Sprintf("box %q updated", box.Name), box.ID, "cash_box", req.ActorID, nil)
	return box, nil
}

// DeleteBox deletes a box. Boxes with movement history cannot be deleted;
// close them instead.
func (s *Service) DeleteBox(ctx context.Context, id, actorID string) error {
	box, err := s.boxes.Get(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.movements.CountByBox(ctx, id)
	if err != nil {
		return fault.Wrap(fault.Internal, err, "failed to count box movements")
	}
	if count > 0 {
		return fault.InvalidStatef("box %q has %d movements; close it instead of deleting", box.Name, count)
	}

	if err := s.boxes.Delete(ctx, id); err != nil {
		return fault.Wrap(fault.Internal, err, "failed to delete box")
	}

	s.emit(ctx, "delete_box", fmt.Sprintf("box %q deleted", box.Name), id, "cash_box", actorID, nil)
	return nil
}

// CloseBox marks a box closed. Closed boxes reject movements until reopened.
func (s *Service) CloseBox(ctx context.Context, id, actorID string) (*CashBox, error) {
	box, err := s.boxes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if box.Status == StatusClosed {
		return nil, fault.InvalidStatef("box %q is already closed", box.Name)
	}

	box.Status = StatusClosed
	if err := s.boxes.Update(ctx, box); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to close box")
	}

	s.emit(ctx, "close_box", fmt.Sprintf("box %q closed", box.Name), box.ID, "cash_box", actorID, nil)
	return box, nil
}

// ReopenBox reactivates a closed box.
func (s *Service) ReopenBox(ctx context.Context, id, actorID string) (*CashBox, error) {
	box, err := s.boxes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if box.Status == StatusActive {
		return nil, fault.InvalidStatef("box %q is not closed", box.Name)
	}

	box.Status = StatusActive
	if err := s.boxes.Update(ctx, box); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to reopen box")
	}

	s.emit(ctx, "reopen_box", fmt.Sprintf("box %q reopened", box.Name), box.ID, "cash_box", actorID, nil)
	return box, nil
}

// PostCashMovementRequest holds parameters for posting a cash movement on one
// box.
type PostCashMovementRequest struct {
	BoxID       string
	Direction   Direction
	Subtype     Subtype
	Category    CashCategory
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Reference   string
	ActorID     string
}

// PostCashMovement records a cash movement and applies it to the box balance.
// A fund-subtype ingress on a central box with a funding account also debits
// that account through the fund ledger; the bank leg is reversed if the cash
// side fails afterwards.
func (s *Service) PostCashMovement(ctx context.Context, req PostCashMovementRequest) (*CashMovement, error) {
	if !req.Amount.IsPositive() {
		return nil, fault.Validationf("amount must be positive")
	}
	if !req.Direction.Valid() {
		return nil, fault.Validationf("invalid direction: %s", req.Direction)
	}
	if !req.Category.Valid() {
		return nil, fault.Validationf("invalid cash category: %s", req.Category)
	}

	box, err := s.activeBox(ctx, req.BoxID)
	if err != nil {
		return nil, err
	}

	if req.Direction == Egress && box.Balance.LessThan(req.Amount) {
		return nil, fault.InsufficientFundsf("box %q has %s %s, cannot spend %s", box.Name, box.Balance.StringFixed(2), box.Currency, req.Amount.StringFixed(2))
	}
	if req.Direction == Ingress {
		if err := s.checkCeiling(box, req.Amount); err != nil {
			return nil, err
		}
	}

	movement := &CashMovement{
		ID:          uuid.NewString(),
		BoxID:       box.ID,
		Direction:   req.Direction,
		Subtype:     req.Subtype,
		Category:    req.Category,
		Amount:      req.Amount,
		Currency:    box.Currency,
		Date:        s.movementDate(req.Date),
		Description: req.Description,
		Reference:   req.Reference,
		CreatedAt:   s.now(),
		CreatedBy:   req.ActorID,
	}

	funded := req.Direction == Ingress && req.Subtype == SubtypeFund &&
		box.Level == LevelCentral && box.FundingAccountID != ""
	if funded {
		account, err := s.ledger.GetAccount(ctx, box.FundingAccountID)
		if err != nil {
			return nil, err
		}
		if account.Currency != box.Currency {
			return nil, fault.Validationf("funding account currency %s does not match box currency %s", account.Currency, box.Currency)
		}
		if account.Balance.LessThan(req.Amount) {
			return nil, fault.InsufficientFundsf("funding account %q has %s %s, cannot fund %s", account.Name, account.Balance.StringFixed(2), account.Currency, req.Amount.StringFixed(2))
		}

		bankLeg, err := s.ledger.PostMovement(ctx, funds.PostMovementRequest{
			SourceAccountID: account.ID,
			Amount:          req.Amount,
			Date:            movement.Date,
			Category:        funds.CategoryBoxFunding,
			Description:     fmt.Sprintf("funding of box %q", box.Name),
			CashBoxID:       box.ID,
			ActorID:         req.ActorID,
		})
		if err != nil {
			return nil, err
		}
		movement.FundMovementID = bankLeg.ID
	}

	if err := s.postLeg(ctx, box, movement); err != nil {
		if movement.FundMovementID != "" {
			s.reverseBankLeg(ctx, movement.FundMovementID, req.ActorID)
		}
		return nil, err
	}

	s.emit(ctx, "post_cash_movement", cashDetail(movement, box), movement.ID, "cash_movement", req.ActorID, map[string]string{
		"box_id":   box.ID,
		"category": string(movement.Category),
		"amount":   movement.Amount.StringFixed(2),
	})
	return movement, nil
}

// TransferRequest holds parameters for moving cash from a central box to one
// of its sub boxes.
type TransferRequest struct {
	CentralBoxID string
	SubBoxID     string
	Amount       decimal.Decimal
	Date         time.Time
	Description  string
	ActorID      string
}

// TransferCentralToSub moves cash from a central box into one of its sub
// boxes as two linked movements. All checks, including the sub box ceiling,
// run before any write; if the sub-box leg fails the central leg is reversed.
func (s *Service) TransferCentralToSub(ctx context.Context, req TransferRequest) (*CashMovement, *CashMovement, error) {
	if !req.Amount.IsPositive() {
		return nil, nil, fault.Validationf("amount must be positive")
	}

	central, err := s.activeBox(ctx, req.CentralBoxID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := s.activeBox(ctx, req.SubBoxID)
	if err != nil {
		return nil, nil, err
	}

	if central.Level != LevelCentral {
		return nil, nil, fault.Validationf("box %q is not a central box", central.Name)
	}
	if sub.Level != LevelSub || sub.ParentID != central.ID {
		return nil, nil, fault.Validationf("box %q is not a sub box of %q", sub.Name, central.Name)
	}
	if central.Currency != sub.Currency {
		return nil, nil, fault.Validationf("currency mismatch between %q and %q", central.Name, sub.Name)
	}
	if central.Balance.LessThan(req.Amount) {
		return nil, nil, fault.InsufficientFundsf("central box %q has %s %s, cannot transfer %s", central.Name, central.Balance.StringFixed(2), central.Currency, req.Amount.StringFixed(2))
	}
	if err := s.checkCeiling(sub, req.Amount); err != nil {
		return nil, nil, err
	}

	date := s.movementDate(req.Date)
	transferID := uuid.NewString()

	out := &CashMovement{
		ID:          uuid.NewString(),
		BoxID:       central.ID,
		Direction:   Egress,
		Subtype:     SubtypeTransfer,
		Category:    CategoryTransferToSub,
		Amount:      req.Amount,
		Currency:    central.Currency,
		Date:        date,
		Description: req.Description,
		Reference:   transferID,
		CreatedAt:   s.now(),
		CreatedBy:   req.ActorID,
	}
	if err := s.postLeg(ctx, central, out); err != nil {
		return nil, nil, err
	}

	in := &CashMovement{
		ID:          uuid.NewString(),
		BoxID:       sub.ID,
		Direction:   Ingress,
		Subtype:     SubtypeFund,
		Category:    CategoryFundReceived,
		Amount:      req.Amount,
		Currency:    sub.Currency,
		Date:        date,
		Description: req.Description,
		Reference:   transferID,
		CreatedAt:   s.now(),
		CreatedBy:   req.ActorID,
	}
	if err := s.postLeg(ctx, sub, in); err != nil {
		if rerr := s.reverseLeg(ctx, out); rerr != nil {
			s.logger.Error("transfer compensation failed; manual reconciliation required",
				"movement_id", out.ID, "error", rerr)
		}
		return nil, nil, err
	}

	s.emit(ctx, "transfer_to_sub", fmt.Sprintf("transfer of %s %s from %q to %q", req.Amount.StringFixed(2), central.Currency, central.Name, sub.Name), in.ID, "cash_movement", req.ActorID, nil)
	return out, in, nil
}

// ExchangeRequest holds parameters for buying foreign currency with cash from
// one box into another.
type ExchangeRequest struct {
	FromBoxID   string
	ToBoxID     string
	Amount      decimal.Decimal
	Rate        decimal.Decimal
	Date        time.Time
	Description string
	ActorID     string
}

// BuyForeignCurrency spends Amount from the source box and credits
// Amount/Rate, rounded to 2 decimals, into the destination box. The two
// movements share an exchange id and are deleted together.
func (s *Service) BuyForeignCurrency(ctx context.Context, req ExchangeRequest) (*CashMovement, *CashMovement, error) {
	if !req.Amount.IsPositive() {
		return nil, nil, fault.Validationf("amount must be positive")
	}
	if !req.Rate.IsPositive() {
		return nil, nil, fault.Validationf("exchange rate must be positive")
	}

	from, err := s.activeBox(ctx, req.FromBoxID)
	if err != nil {
		return nil, nil, err
	}
	to, err := s.activeBox(ctx, req.ToBoxID)
	if err != nil {
		return nil, nil, err
	}
	if from.Currency == to.Currency {
		return nil, nil, fault.Validationf("exchange requires boxes in different currencies")
	}
	if from.Balance.LessThan(req.Amount) {
		return nil, nil, fault.InsufficientFundsf("box %q has %s %s, cannot exchange %s", from.Name, from.Balance.StringFixed(2), from.Currency, req.Amount.StringFixed(2))
	}

	fxAmount := req.Amount.Div(req.Rate).Round(2)
	if !fxAmount.IsPositive() {
		return nil, nil, fault.Validationf("exchange of %s at rate %s yields nothing", req.Amount.StringFixed(2), req.Rate.String())
	}
	if err := s.checkCeiling(to, fxAmount); err != nil {
		return nil, nil, err
	}

	date := s.movementDate(req.Date)
	exchangeID := uuid.NewString()

	out := &CashMovement{
		ID:           uuid.NewString(),
		BoxID:        from.ID,
		Direction:    Egress,
		Category:     CategoryExchange,
		Amount:       req.Amount,
		Currency:     from.Currency,
		Date:         date,
		Description:  req.Description,
		ExchangeID:   exchangeID,
		ExchangeRate: req.Rate,
		CreatedAt:    s.now(),
		CreatedBy:    req.ActorID,
	}
	if err := s.postLeg(ctx, from, out); err != nil {
		return nil, nil, err
	}

	in := &CashMovement{
		ID:           uuid.NewString(),
		BoxID:        to.ID,
		Direction:    Ingress,
		Subtype:      SubtypeOther,
		Category:     CategoryExchange,
		Amount:       fxAmount,
		Currency:     to.Currency,
		Date:         date,
		Description:  req.Description,
		ExchangeID:   exchangeID,
		ExchangeRate: req.Rate,
		CreatedAt:    s.now(),
		CreatedBy:    req.ActorID,
	}
	if err := s.postLeg(ctx, to, in); err != nil {
		if rerr := s.reverseLeg(ctx, out); rerr != nil {
			s.logger.Error("exchange compensation failed; manual reconciliation required",
				"movement_id", out.ID, "error", rerr)
		}
		return nil, nil, err
	}

	s.emit(ctx, "buy_foreign_currency", fmt.Sprintf("exchange of %s %s into %s %s at rate %s", req.Amount.StringFixed(2), from.Currency, fxAmount.StringFixed(2), to.Currency, req.Rate.String()), in.ID, "cash_movement", req.ActorID, nil)
	return out, in, nil
}

// DeleteCashMovement deletes a cash movement and reverts its balance effect.
// Exchange pairs are deleted whole, and a funded ingress also reverses its
// bank-side leg.
func (s *Service) DeleteCashMovement(ctx context.Context, id, actorID string) error {
	movement, err := s.movements.Get(ctx, id)
	if err != nil {
		return err
	}

	if movement.ExchangeID != "" {
		legs, err := s.movements.ListByExchangeID(ctx, movement.ExchangeID)
		if err != nil {
			return fault.Wrap(fault.Internal, err, "failed to load exchange pair")
		}
		for _, leg := range legs {
			if leg.ID == movement.ID {
				continue
			}
			if err := s.deleteSingleMovement(ctx, leg, actorID); err != nil {
				return err
			}
		}
	}
	return s.deleteSingleMovement(ctx, movement, actorID)
}

func (s *Service) deleteSingleMovement(ctx context.Context, movement *CashMovement, actorID string) error {
	if movement.FundMovementID != "" {
		if err := s.ledger.ReverseMovement(ctx, movement.FundMovementID, actorID); err != nil {
			return fault.Wrap(fault.Internal, err, "failed to reverse bank leg of movement %s", movement.ID)
		}
	}
	if err := s.reverseLeg(ctx, movement); err != nil {
		if movement.FundMovementID != "" {
			s.logger.Error("bank leg reversed but cash movement survives; manual reconciliation required",
				"movement_id", movement.ID, "fund_movement_id", movement.FundMovementID, "error", err)
		}
		return err
	}

	s.emit(ctx, "delete_cash_movement", cashDetailByID(movement), movement.ID, "cash_movement", actorID, nil)
	return nil
}

// ReimbursementItemRequest is one expense line in a reimbursement request.
type ReimbursementItemRequest struct {
	Category    CashCategory
	Amount      decimal.Decimal
	Description string
	Receipt     string
}

// CreateReimbursementRequest holds parameters for opening a reimbursement.
type CreateReimbursementRequest struct {
	BoxID   string
	Items   []ReimbursementItemRequest
	Notes   string
	ActorID string
}

// CreateReimbursement records a pending batch of expenses against a box. The
// box balance is untouched until approval, so no sufficiency check runs here.
func (s *Service) CreateReimbursement(ctx context.Context, req CreateReimbursementRequest) (*Reimbursement, error) {
	if len(req.Items) == 0 {
		return nil, fault.Validationf("reimbursement requires at least one item")
	}

	box, err := s.activeBox(ctx, req.BoxID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]ReimbursementItem, 0, len(req.Items))
	for i, item := range req.Items {
		if !item.Amount.IsPositive() {
			return nil, fault.Validationf("item %d: amount must be positive", i+1)
		}
		if !item.Category.Valid() {
			return nil, fault.Validationf("item %d: invalid cash category: %s", i+1, item.Category)
		}
		total = total.Add(item.Amount)
		items = append(items, ReimbursementItem{
			ID:          uuid.NewString(),
			Category:    item.Category,
			Amount:      item.Amount,
			Description: item.Description,
			Receipt:     item.Receipt,
		})
	}

	reimbursement := &Reimbursement{
		ID:        uuid.NewString(),
		BoxID:     box.ID,
		Items:     items,
		Total:     total,
		Status:    ReimbursementPending,
		Notes:     req.Notes,
		CreatedAt: s.now(),
		CreatedBy: req.ActorID,
	}

	if err := s.reimbursements.Insert(ctx, reimbursement); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to create reimbursement")
	}

	s.emit(ctx, "create_reimbursement", fmt.Sprintf("reimbursement of %s %s with %d items opened on box %q", total.StringFixed(2), box.Currency, len(items), box.Name), reimbursement.ID, "reimbursement", req.ActorID, nil)
	return reimbursement, nil
}

// GetReimbursement retrieves a reimbursement by id.
func (s *Service) GetReimbursement(ctx context.Context, id string) (*Reimbursement, error) {
	if id == "" {
		return nil, fault.Validationf("reimbursement id is required")
	}
	return s.reimbursements.Get(ctx, id)
}

// ListReimbursements retrieves the reimbursements of a box, newest first.
func (s *Service) ListReimbursements(ctx context.Context, boxID string) ([]*Reimbursement, error) {
	if boxID == "" {
		return nil, fault.Validationf("box id is required")
	}
	return s.reimbursements.ListByBox(ctx, boxID)
}

// ApproveReimbursement settles a pending reimbursement: one reconciled egress
// per item plus a single replenishment ingress for the total, leaving the box
// back at its imprest level. The expenses already happened in cash, so the
// egress legs skip the balance sufficiency check. A partial failure unwinds
// every leg already posted.
func (s *Service) ApproveReimbursement(ctx context.Context, id, resolverID string) (*Reimbursement, error) {
	reimbursement, err := s.reimbursements.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reimbursement.Status != ReimbursementPending {
		return nil, fault.InvalidStatef("reimbursement %s is %s, only pending reimbursements can be approved", id, reimbursement.Status)
	}

	box, err := s.activeBox(ctx, reimbursement.BoxID)
	if err != nil {
		return nil, err
	}

	date := s.now()
	var posted []*CashMovement
	unwind := func() {
		for i := len(posted) - 1; i >= 0; i-- {
			if rerr := s.reverseLeg(ctx, posted[i]); rerr != nil {
				s.logger.Error("reimbursement compensation failed; manual reconciliation required",
					"movement_id", posted[i].ID, "reimbursement_id", id, "error", rerr)
			}
		}
	}

	for _, item := range reimbursement.Items {
		leg := &CashMovement{
			ID:              uuid.NewString(),
			BoxID:           box.ID,
			Direction:       Egress,
			Category:        item.Category,
			Amount:          item.Amount,
			Currency:        box.Currency,
			Date:            date,
			Description:     item.Description,
			Reference:       item.Receipt,
			Reconciled:      true,
			ReimbursementID: reimbursement.ID,
			CreatedAt:       s.now(),
			CreatedBy:       resolverID,
		}
		if err := s.postLeg(ctx, box, leg); err != nil {
			unwind()
			return nil, err
		}
		posted = append(posted, leg)
	}

	replenishment := &CashMovement{
		ID:              uuid.NewString(),
		BoxID:           box.ID,
		Direction:       Ingress,
		Subtype:         SubtypeReplenishment,
		Category:        CategoryReplenishment,
		Amount:          reimbursement.Total,
		Currency:        box.Currency,
		Date:            date,
		Description:     fmt.Sprintf("replenishment of reimbursement %s", reimbursement.ID),
		Reconciled:      true,
		ReimbursementID: reimbursement.ID,
		CreatedAt:       s.now(),
		CreatedBy:       resolverID,
	}
	if err := s.postLeg(ctx, box, replenishment); err != nil {
		unwind()
		return nil, err
	}
	posted = append(posted, replenishment)

	resolvedAt := s.now()
	reimbursement.Status = ReimbursementApproved
	reimbursement.ResolvedAt = &resolvedAt
	reimbursement.ResolvedBy = resolverID
	if err := s.reimbursements.Update(ctx, reimbursement); err != nil {
		unwind()
		return nil, fault.Wrap(fault.Internal, err, "failed to mark reimbursement approved")
	}

	s.emit(ctx, "approve_reimbursement", fmt.Sprintf("reimbursement of %s %s approved on box %q", reimbursement.Total.StringFixed(2), box.Currency, box.Name), reimbursement.ID, "reimbursement", resolverID, nil)
	return reimbursement, nil
}

// RejectReimbursement marks a pending reimbursement rejected. No movements
// are posted.
func (s *Service) RejectReimbursement(ctx context.Context, id, resolverID, notes string) (*Reimbursement, error) {
	reimbursement, err := s.reimbursements.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reimbursement.Status != ReimbursementPending {
		return nil, fault.InvalidStatef("reimbursement %s is %s, only pending reimbursements can be rejected", id, reimbursement.Status)
	}

	resolvedAt := s.now()
	reimbursement.Status = ReimbursementRejected
	reimbursement.ResolvedAt = &resolvedAt
	reimbursement.ResolvedBy = resolverID
	if notes != "" {
		reimbursement.Notes = notes
	}
	if err := s.reimbursements.Update(ctx, reimbursement); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to mark reimbursement rejected")
	}

	s.emit(ctx, "reject_reimbursement", fmt.Sprintf("reimbursement %s rejected", id), id, "reimbursement", resolverID, nil)
	return reimbursement, nil
}

// CreateClosingRequest holds parameters for a cash closing snapshot.
type CreateClosingRequest struct {
	BoxID   string
	Period  ClosingPeriod
	CutOff  time.Time
	Notes   string
	ActorID string
}

// CreateClosing snapshots a box balance at a cut-off. Closings are append
// only; they are never updated or deleted.
func (s *Service) CreateClosing(ctx context.Context, req CreateClosingRequest) (*CashClosing, error) {
	if req.Period != ClosingDaily && req.Period != ClosingMonthly {
		return nil, fault.Validationf("invalid closing period: %s", req.Period)
	}

	box, err := s.boxes.Get(ctx, req.BoxID)
	if err != nil {
		return nil, err
	}

	cutOff := req.CutOff
	if cutOff.IsZero() {
		cutOff = s.now()
	}

	closing := &CashClosing{
		ID:        uuid.NewString(),
		BoxID:     box.ID,
		Period:    req.Period,
		CutOff:    cutOff,
		Balance:   box.Balance,
		Notes:     req.Notes,
		CreatedAt: s.now(),
		CreatedBy: req.ActorID,
	}

	if err := s.closings.Insert(ctx, closing); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to create closing")
	}

	s.emit(ctx, "create_closing", fmt.Sprintf("%s closing of box %q at %s %s", req.Period, box.Name, closing.Balance.StringFixed(2), box.Currency), closing.ID, "cash_closing", req.ActorID, nil)
	return closing, nil
}

// ListClosings retrieves the closings of a box, newest first.
func (s *Service) ListClosings(ctx context.Context, boxID string) ([]*CashClosing, error) {
	if boxID == "" {
		return nil, fault.Validationf("box id is required")
	}
	return s.closings.ListByBox(ctx, boxID)
}

// ListCashMovements retrieves the movements of a box, newest first.
func (s *Service) ListCashMovements(ctx context.Context, boxID string) ([]*CashMovement, error) {
	if boxID == "" {
		return nil, fault.Validationf("box id is required")
	}
	return s.movements.ListByBox(ctx, boxID)
}

// ControlMatrix builds the per-box control report for the boxes matching the
// filter: opening balance, total funded in (fund and replenishment
// ingresses), total spent, and the resulting balance. A zero filter covers
// every box.
func (s *Service) ControlMatrix(ctx context.Context, f BoxFilter) ([]ControlRow, error) {
	boxes, err := s.boxes.List(ctx, f)
	if err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to list boxes")
	}

	rows := make([]ControlRow, 0, len(boxes))
	for _, box := range boxes {
		movements, err := s.movements.ListByBox(ctx, box.ID)
		if err != nil {
			return nil, fault.Wrap(fault.Internal, err, "failed to list movements for box %s", box.ID)
		}

		funded := decimal.Zero
		spent := decimal.Zero
		for _, m := range movements {
			switch m.Direction {
			case Ingress:
				if m.Subtype == SubtypeFund || m.Subtype == SubtypeReplenishment {
					funded = funded.Add(m.Amount)
				}
			case Egress:
				spent = spent.Add(m.Amount)
			}
		}

		rows = append(rows, ControlRow{
			BoxID:          box.ID,
			Name:           box.Name,
			Level:          box.Level,
			Currency:       box.Currency,
			OpeningBalance: box.OpeningBalance,
			TotalFunded:    funded,
			TotalSpent:     spent,
			Balance:        box.Balance,
		})
	}
	return rows, nil
}

// activeBox loads a box and rejects closed ones.
func (s *Service) activeBox(ctx context.Context, id string) (*CashBox, error) {
	if id == "" {
		return nil, fault.Validationf("box id is required")
	}
	box, err := s.boxes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if box.Status != StatusActive {
		return nil, fault.InvalidStatef("box %q is closed", box.Name)
	}
	return box, nil
}

// checkCeiling rejects an ingress that would push a capped box past its
// ceiling. A ceiling of zero means uncapped.
func (s *Service) checkCeiling(box *CashBox, amount decimal.Decimal) error {
	if box.Ceiling.IsPositive() && box.Balance.Add(amount).GreaterThan(box.Ceiling) {
		return fault.InsufficientFundsf("box %q would exceed its ceiling of %s %s", box.Name, box.Ceiling.StringFixed(2), box.Currency)
	}
	return nil
}

// postLeg applies a movement's balance delta to its box and records it. The
// balance write is compensated if the record insert fails.
func (s *Service) postLeg(ctx context.Context, box *CashBox, m *CashMovement) error {
	delta := m.Amount
	if m.Direction == Egress {
		delta = delta.Neg()
	}

	box.Balance = box.Balance.Add(delta)
	if err := s.boxes.Update(ctx, box); err != nil {
		box.Balance = box.Balance.Sub(delta)
		return fault.Wrap(fault.Internal, err, "failed to update box balance")
	}

	if err := s.movements.Insert(ctx, m); err != nil {
		box.Balance = box.Balance.Sub(delta)
		if uerr := s.boxes.Update(ctx, box); uerr != nil {
			s.logger.Error("box balance compensation failed; manual reconciliation required",
				"box_id", box.ID, "delta", delta.String(), "error", uerr)
		}
		return fault.Wrap(fault.Internal, err, "failed to record cash movement")
	}
	return nil
}

// reverseLeg applies the inverse balance delta of a movement and deletes its
// record.
func (s *Service) reverseLeg(ctx context.Context, m *CashMovement) error {
	box, err := s.boxes.Get(ctx, m.BoxID)
	if err != nil {
		return err
	}

	delta := m.Amount
	if m.Direction == Ingress {
		delta = delta.Neg()
	}

	box.Balance = box.Balance.Add(delta)
	if err := s.boxes.Update(ctx, box); err != nil {
		return fault.Wrap(fault.Internal, err, "failed to restore box balance")
	}

	if err := s.movements.Delete(ctx, m.ID); err != nil {
		box.Balance = box.Balance.Sub(delta)
		if uerr := s.boxes.Update(ctx, box); uerr != nil {
			s.logger.Error("box balance compensation failed; manual reconciliation required",
				"box_id", box.ID, "delta", delta.String(), "error", uerr)
		}
		return fault.Wrap(fault.Internal, err, "failed to delete cash movement")
	}
	return nil
}

func (s *Service) reverseBankLeg(ctx context.Context, fundMovementID, actorID string) {
	if err := s.ledger.ReverseMovement(ctx, fundMovementID, actorID); err != nil {
		s.logger.Error("bank leg compensation failed; manual reconciliation required",
			"fund_movement_id", fundMovementID, "error", err)
	}
}

func (s *Service) movementDate(date time.Time) time.Time {
	if date.IsZero() {
		return s.now()
	}
	return date
}

func (s *Service) emit(ctx context.Context, action, detail, entityID, entityType, actorID string, metadata map[string]string) {
	audit.Emit(ctx, s.recorder, s.logger, audit.Entry{
		Action:     action,
		Module:     module,
		Detail:     detail,
		EntityID:   entityID,
		EntityType: entityType,
		ActorID:    actorID,
		Metadata:   metadata,
	})
}

func cashDetail(m *CashMovement, box *CashBox) string {
	if m.Direction == Ingress {
		return fmt.Sprintf("ingress of %s %s into box %q (%s)", m.Amount.StringFixed(2), m.Currency, box.Name, m.Category)
	}
	return fmt.Sprintf("egress of %s %s from box %q (%s)", m.Amount.StringFixed(2), m.Currency, box.Name, m.Category)
}

func cashDetailByID(m *CashMovement) string {
	return fmt.Sprintf("%s of %s %s on box %s deleted (%s)", m.Direction, m.Amount.StringFixed(2), m.Currency, m.BoxID, m.Category)
}
