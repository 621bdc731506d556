package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultRefetchDelay   = 500 * time.Millisecond
	DefaultRefetchTimeout = 5 * time.Second

	// maxRefetchAttempts bounds how often a refetch is repeated while the backend
	// has not caught up with an optimistic write yet.
	maxRefetchAttempts = 3
)

type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type Mutator interface {
	CreateReview(ctx context.Context, req domain.CreateReviewRequest) error
	UpdateReview(ctx context.Context, req domain.UpdateReviewRequest) error
	DeleteReview(ctx context.Context, reviewID string) error
}

// Observer receives mutation and refetch outcomes, typically for metrics.
type Observer interface {
	ReviewMutation(kind, outcome string)
	ReviewRefetch(outcome string)
}

type nopObserver struct{}

func (nopObserver) ReviewMutation(string, string) {}
func (nopObserver) ReviewRefetch(string)          {}

type Options struct {
	RefetchDelay   time.Duration
	RefetchTimeout time.Duration
	Logger         zerolog.Logger
	Observer       Observer
	Now            func() time.Time
}

type entry struct {
	review     domain.Review
	optimistic bool
	gen        uint64
}

// Reconciler keeps the review state of one order-detail view. Local writes are applied
// as soon as the backend acknowledges them and are reconciled with a delayed refetch.
type Reconciler struct {
	mu sync.Mutex

	orderID string
	userID  string
	status  domain.OrderStatus
	items   []domain.OrderItem

	reviews  map[string]*entry // order item id -> review
	removed  map[string]struct{}
	draft    *domain.ReviewDraft
	inFlight map[string]struct{}
	gen      uint64

	timers map[*time.Timer]struct{}
	closed bool

	fetcher OrderFetcher
	mutator Mutator

	refetchDelay   time.Duration
	refetchTimeout time.Duration
	logger         zerolog.Logger
	observer       Observer
	now            func() time.Time
}

func NewReconciler(orderID string, fetcher OrderFetcher, mutator Mutator, opts Options) *Reconciler {
	r := &Reconciler{
		orderID:        orderID,
		reviews:        make(map[string]*entry),
		removed:        make(map[string]struct{}),
		inFlight:       make(map[string]struct{}),
		timers:         make(map[*time.Timer]struct{}),
		fetcher:        fetcher,
		mutator:        mutator,
		refetchDelay:   opts.RefetchDelay,
		refetchTimeout: opts.RefetchTimeout,
		logger:         opts.Logger.With().Str("order_id", orderID).Logger(),
		observer:       opts.Observer,
		now:            opts.Now,
	}
	if r.refetchDelay <= 0 {
		r.refetchDelay = DefaultRefetchDelay
	}
	if r.refetchTimeout <= 0 {
		r.refetchTimeout = DefaultRefetchTimeout
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Reconciler) OrderID() string {
	return r.orderID
}

// UserID is the owner of the order as last reported by the backend.
func (r *Reconciler) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

// Load fetches the order detail and seeds the view from it.
func (r *Reconciler) Load(ctx context.Context) error {
	order, err := r.fetcher.GetOrder(ctx, r.orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", r.orderID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.applyOrderLocked(order, nil)
	return nil
}

// Seed merges server review data into the local map. Entries written locally and not
// yet confirmed are kept as they are.
func (r *Reconciler) Seed(items []domain.OrderItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seedLocked(items, nil)
}

func (r *Reconciler) applyOrderLocked(order *domain.Order, confirm map[string]uint64) {
	r.userID = order.UserID
	r.status = order.Status
	r.seedLocked(order.Items, confirm)
}

// seedLocked merges a server snapshot. confirm maps item ids to the generation a refetch
// was scheduled for; an optimistic entry still at that generation adopts the server review
// once that review reflects the local write.
func (r *Reconciler) seedLocked(items []domain.OrderItem, confirm map[string]uint64) {
	r.items = make([]domain.OrderItem, 0, len(items))
	candidate := make(map[string]domain.Review, len(items))
	for _, item := range items {
		server := item.Review
		item.Review = nil
		r.items = append(r.items, item)
		if server == nil {
			continue
		}
		if _, gone := r.removed[server.ID]; gone {
			continue
		}
		rv := *server
		if rv.OrderItemID == "" {
			rv.OrderItemID = item.ID
		}
		if rv.ProductID == "" {
			rv.ProductID = item.ProductID
		}
		candidate[item.ID] = rv
	}

	next := make(map[string]*entry, len(candidate))
	for itemID, e := range r.reviews {
		if !e.optimistic {
			continue
		}
		if gen, ok := confirm[itemID]; ok && gen == e.gen {
			if server, found := candidate[itemID]; found && reflects(server, e.review) {
				next[itemID] = &entry{review: server}
				continue
			}
		}
		next[itemID] = e
	}
	for itemID, rv := range candidate {
		if _, ok := next[itemID]; !ok {
			next[itemID] = &entry{review: rv}
		}
	}
	r.reviews = next

	// Ids the server no longer reports are safe to forget.
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Review != nil {
			seen[item.Review.ID] = struct{}{}
		}
	}
	for id := range r.removed {
		if _, ok := seen[id]; !ok {
			delete(r.removed, id)
		}
	}
}

// reflects reports whether a server review already carries a local write. A created
// review only needs to exist on the server; an edited one must show the new values,
// otherwise the server still holds the review as it was before the edit.
func reflects(server, local domain.Review) bool {
	if local.IsTemporary() {
		return true
	}
	return server.ID == local.ID && server.Rating == local.Rating && server.Content == local.Content
}

func (r *Reconciler) itemLocked(itemID string) (domain.OrderItem, bool) {
	for _, item := range r.items {
		if item.ID == itemID {
			return item, true
		}
	}
	return domain.OrderItem{}, false
}

// Item returns a line item of the loaded order.
func (r *Reconciler) Item(itemID string) (domain.OrderItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.itemLocked(itemID)
}

// OpenCreate starts a new review draft for a delivered line item.
func (r *Reconciler) OpenCreate(item domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.status != domain.OrderStatusDelivered {
		return ErrOrderNotDelivered
	}
	if _, ok := r.itemLocked(item.ID); !ok {
		return ErrUnknownOrderItem
	}
	if _, busy := r.inFlight[item.ID]; busy {
		return ErrSubmissionInFlight
	}
	if _, exists := r.reviews[item.ID]; exists {
		return ErrReviewExists
	}

	r.draft = &domain.ReviewDraft{
		OrderItemID: item.ID,
		ProductID:   item.ProductID,
		Rating:      domain.DefaultDraftRating,
		Content:     "",
	}
	return nil
}

// OpenEdit starts an edit draft pre-filled from an existing review.
func (r *Reconciler) OpenEdit(rv domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if rv.IsTemporary() {
		return ErrReviewPending
	}
	if _, busy := r.inFlight[rv.OrderItemID]; busy {
		return ErrSubmissionInFlight
	}

	r.draft = &domain.ReviewDraft{
		ReviewID:    rv.ID,
		OrderItemID: rv.OrderItemID,
		ProductID:   rv.ProductID,
		Rating:      rv.Rating,
		Content:     rv.Content,
	}
	return nil
}

// UpdateDraft changes the form fields of the open draft.
func (r *Reconciler) UpdateDraft(rating int, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.draft == nil {
		return ErrNoDraft
	}
	if _, busy := r.inFlight[r.draft.OrderItemID]; busy {
		return ErrSubmissionInFlight
	}
	if !domain.ValidRating(rating) {
		return ErrInvalidRating
	}
	r.draft.Rating = rating
	r.draft.Content = content
	return nil
}

// CancelDraft discards the open draft without any network call.
func (r *Reconciler) CancelDraft() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.draft == nil {
		return nil
	}
	if _, busy := r.inFlight[r.draft.OrderItemID]; busy {
		return ErrSubmissionInFlight
	}
	r.draft = nil
	return nil
}

// Submit sends the open draft. On failure the draft is kept so the user can retry.
func (r *Reconciler) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.draft == nil {
		r.mu.Unlock()
		return ErrNoDraft
	}
	d := *r.draft
	if err := r.checkSubmittableLocked(d); err != nil {
		r.mu.Unlock()
		return err
	}
	r.inFlight[d.OrderItemID] = struct{}{}
	r.mu.Unlock()

	kind := "create"
	var err error
	if d.IsEdit() {
		kind = "update"
		err = r.mutator.UpdateReview(ctx, domain.UpdateReviewRequest{
			ID:      d.ReviewID,
			Rating:  d.Rating,
			Content: d.Content,
		})
	} else {
		err = r.mutator.CreateReview(ctx, domain.CreateReviewRequest{
			OrderItemID: d.OrderItemID,
			ProductID:   d.ProductID,
			Rating:      d.Rating,
			Content:     d.Content,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, d.OrderItemID)

	if err != nil {
		r.observer.ReviewMutation(kind, "error")
		r.logger.Warn().Err(err).Str("order_item_id", d.OrderItemID).Str("kind", kind).Msg("review mutation failed")
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}
	r.observer.ReviewMutation(kind, "ok")

	now := r.now()
	if d.IsEdit() {
		// The entry may have been dropped by a concurrent refetch; nothing to patch then.
		if e, ok := r.reviews[d.OrderItemID]; ok {
			e.review.Rating = d.Rating
			e.review.Content = d.Content
			e.review.UpdatedAt = now
			r.markLocalLocked(e)
		}
	} else {
		e := &entry{review: domain.Review{
			ID:          domain.TemporaryReviewID(uuid.NewString()),
			OrderItemID: d.OrderItemID,
			ProductID:   d.ProductID,
			Rating:      d.Rating,
			Content:     d.Content,
			CreatedAt:   now,
			UpdatedAt:   now,
		}}
		r.markLocalLocked(e)
		r.reviews[d.OrderItemID] = e
	}

	if r.draft != nil && r.draft.OrderItemID == d.OrderItemID {
		r.draft = nil
	}
	r.scheduleRefetchLocked(r.confirmationFor(d.OrderItemID), 1)
	return nil
}

func (r *Reconciler) checkSubmittableLocked(d domain.ReviewDraft) error {
	if _, busy := r.inFlight[d.OrderItemID]; busy {
		return ErrSubmissionInFlight
	}
	if !domain.ValidRating(d.Rating) {
		return ErrInvalidRating
	}
	if d.IsEdit() {
		return nil
	}
	if r.status != domain.OrderStatusDelivered {
		return ErrOrderNotDelivered
	}
	if _, exists := r.reviews[d.OrderItemID]; exists {
		return ErrReviewExists
	}
	return nil
}

func (r *Reconciler) markLocalLocked(e *entry) {
	r.gen++
	e.optimistic = true
	e.gen = r.gen
}

func (r *Reconciler) confirmationFor(itemID string) map[string]uint64 {
	e, ok := r.reviews[itemID]
	if !ok {
		return nil
	}
	return map[string]uint64{itemID: e.gen}
}

// Remove deletes a review after the user confirmed it. The local entry is only dropped
// once the backend acknowledged the deletion.
func (r *Reconciler) Remove(ctx context.Context, reviewID string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	itemID, e, found := r.findByReviewIDLocked(reviewID)
	if !found {
		r.mu.Unlock()
		r.logger.Debug().Str("review_id", reviewID).Msg("remove of unknown review ignored")
		return nil
	}
	if e.review.IsTemporary() {
		r.mu.Unlock()
		return ErrReviewPending
	}
	if _, busy := r.inFlight[itemID]; busy {
		r.mu.Unlock()
		return ErrSubmissionInFlight
	}
	r.inFlight[itemID] = struct{}{}
	r.mu.Unlock()

	err := r.mutator.DeleteReview(ctx, reviewID)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, itemID)

	if err != nil {
		r.observer.ReviewMutation("delete", "error")
		r.logger.Warn().Err(err).Str("review_id", reviewID).Msg("review delete failed")
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}
	r.observer.ReviewMutation("delete", "ok")

	if current, _, ok := r.findByReviewIDLocked(reviewID); ok {
		delete(r.reviews, current)
	}
	r.removed[reviewID] = struct{}{}
	if r.draft != nil && r.draft.ReviewID == reviewID {
		r.draft = nil
	}
	r.scheduleRefetchLocked(nil, 1)
	return nil
}

func (r *Reconciler) findByReviewIDLocked(reviewID string) (string, *entry, bool) {
	for itemID, e := range r.reviews {
		if e.review.ID == reviewID {
			return itemID, e, true
		}
	}
	return "", nil, false
}

// ReviewFor returns the review currently shown for a line item.
func (r *Reconciler) ReviewFor(itemID string) (domain.Review, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.reviews[itemID]
	if !ok {
		return domain.Review{}, false
	}
	return e.review, true
}

// ReviewByID resolves a review by its id.
func (r *Reconciler) ReviewByID(reviewID string) (domain.Review, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, e, ok := r.findByReviewIDLocked(reviewID)
	if !ok {
		return domain.Review{}, false
	}
	return e.review, true
}

func (r *Reconciler) IsEditingItem(itemID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft != nil && r.draft.OrderItemID == itemID
}

func (r *Reconciler) Draft() (domain.ReviewDraft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draft == nil {
		return domain.ReviewDraft{}, false
	}
	return *r.draft, true
}

// Close stops pending refetches. The reconciler must not be used afterwards.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for t := range r.timers {
		t.Stop()
	}
	r.timers = make(map[*time.Timer]struct{})
}

func (r *Reconciler) scheduleRefetchLocked(confirm map[string]uint64, attempt int) {
	if r.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(r.refetchDelay, func() {
		r.mu.Lock()
		delete(r.timers, t)
		r.mu.Unlock()
		r.refetch(confirm, attempt)
	})
	r.timers[t] = struct{}{}
}

func (r *Reconciler) refetch(confirm map[string]uint64, attempt int) {
	ctx, cancel := context.WithTimeout(context.Background(), r.refetchTimeout)
	defer cancel()

	order, err := r.fetcher.GetOrder(ctx, r.orderID)
	if err != nil {
		r.observer.ReviewRefetch("error")
		r.logger.Warn().Err(err).Int("attempt", attempt).Msg("order refetch failed")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.applyOrderLocked(order, confirm)

	pending := make(map[string]uint64)
	for itemID, gen := range confirm {
		if e, ok := r.reviews[itemID]; ok && e.optimistic && e.gen == gen {
			pending[itemID] = gen
		}
	}
	if len(pending) == 0 {
		r.observer.ReviewRefetch("ok")
		return
	}
	if attempt >= maxRefetchAttempts {
		r.observer.ReviewRefetch("stale")
		r.logger.Info().Int("pending", len(pending)).Msg("backend has not caught up with local reviews")
		return
	}
	r.observer.ReviewRefetch("retry")
	r.scheduleRefetchLocked(pending, attempt+1)
}
