package feed

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangrove/internal/models"
	"mangrove/internal/utils"
)

// DefaultUndoWindow is how long a deleted comment can be brought back
// before the delete is finalized against the server.
const DefaultUndoWindow = 8 * time.Second

// Status of a pending operation.
type Status string

const (
	StatusSaving Status = "saving"
	StatusError  Status = "error"
)

// PendingOperation tracks one in-flight mutation, keyed by the
// comment id it touches (the temporary id for creates). Retry replays
// the original request reusing the same id, so invoking it never
// produces a second optimistic node.
type PendingOperation struct {
	Status       Status
	ErrorMessage string
	Retry        func()
}

// API is the server surface the engine reconciles against. Transport
// errors must come back as utils.AppError with code NETWORK_ERROR and
// rejected requests with the server's code; the engine folds either
// into the pending state rather than propagating it.
type API interface {
	CreateComment(ctx context.Context, postID uuid.UUID, content string, parentID *uuid.UUID) (*models.Comment, error)
	EditComment(ctx context.Context, commentID uuid.UUID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, commentID uuid.UUID) error
}

// Identity is the locally known author stamped onto optimistic nodes.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

type undoEntry struct {
	subtree  *models.Comment
	parentID *uuid.UUID
	index    int
	timer    Timer
	// set once the window has elapsed; Undo is refused from then on
	finalizing bool
}

// Engine applies comment mutations to a locally held tree before the
// server confirms them, then reconciles or rolls back on the
// response. All local mutations happen synchronously under the lock,
// so a caller never observes a tree that is missing its own action;
// only the network round trip is asynchronous.
type Engine struct {
	mu         sync.Mutex
	postID     uuid.UUID
	author     Identity
	api        API
	sched      Scheduler
	undoWindow time.Duration

	tree    []*models.Comment
	pending map[uuid.UUID]*PendingOperation
	undo    map[uuid.UUID]*undoEntry

	// confirmedID maps a temporary create id to the id the server
	// assigned it. unconfirmed holds temp ids whose creates have not
	// landed yet; waiting holds child create dispatches held back
	// until their parent lands, keyed by the parent's temp id.
	confirmedID map[uuid.UUID]uuid.UUID
	unconfirmed map[uuid.UUID]bool
	waiting     map[uuid.UUID][]func()

	// dispatch runs the network half of an operation. Swapped for a
	// synchronous runner in tests.
	dispatch func(fn func())
}

// NewEngine creates an engine for one post's comment feed. A nil
// scheduler means real time; a zero undoWindow means DefaultUndoWindow.
func NewEngine(postID uuid.UUID, author Identity, api API, sched Scheduler, undoWindow time.Duration) *Engine {
	if sched == nil {
		sched = SystemScheduler()
	}
	if undoWindow <= 0 {
		undoWindow = DefaultUndoWindow
	}
	return &Engine{
		postID:      postID,
		author:      author,
		api:         api,
		sched:       sched,
		undoWindow:  undoWindow,
		tree:        make([]*models.Comment, 0),
		pending:     make(map[uuid.UUID]*PendingOperation),
		undo:        make(map[uuid.UUID]*undoEntry),
		confirmedID: make(map[uuid.UUID]uuid.UUID),
		unconfirmed: make(map[uuid.UUID]bool),
		waiting:     make(map[uuid.UUID][]func()),
		dispatch:    func(fn func()) { go fn() },
	}
}

// Load seeds the tree from a server fetch, replacing local state.
func (e *Engine) Load(tree []*models.Comment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tree = tree
}

// Tree returns the current forest. Operations are copy-on-write, so
// the returned slice is a stable snapshot.
func (e *Engine) Tree() []*models.Comment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree
}

// Pending returns the pending operation for a comment id, if any.
func (e *Engine) Pending(id uuid.UUID) (PendingOperation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if op, ok := e.pending[id]; ok {
		return *op, true
	}
	return PendingOperation{}, false
}

// CanUndo reports whether a delete is still inside its undo window.
func (e *Engine) CanUndo(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.undo[id]
	return ok && !entry.finalizing
}

// AddComment optimistically appends a top-level comment and issues
// the create request. It returns the temporary id the node carries
// until the server confirms.
func (e *Engine) AddComment(content string) (uuid.UUID, error) {
	return e.create(content, nil)
}

// Reply optimistically attaches a reply under parentID. Replying
// under a not-yet-confirmed parent is allowed; the reply survives the
// parent's confirmation.
func (e *Engine) Reply(parentID uuid.UUID, content string) (uuid.UUID, error) {
	return e.create(content, &parentID)
}

func (e *Engine) create(content string, parentID *uuid.UUID) (uuid.UUID, error) {
	if strings.TrimSpace(content) == "" {
		return uuid.Nil, utils.NewEmptyContentError()
	}

	e.mu.Lock()
	if parentID != nil && Find(e.tree, *parentID) == nil {
		e.mu.Unlock()
		return uuid.Nil, utils.NewAppError(utils.ErrNotFound, "parent comment not in tree", nil)
	}

	now := time.Now()
	tempID := uuid.New()
	node := &models.Comment{
		ID:             tempID,
		Content:        content,
		AuthorID:       e.author.UserID,
		AuthorUsername: e.author.Username,
		PostID:         e.postID,
		ParentID:       parentID,
		Children:       make([]*models.Comment, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if parentID == nil {
		e.tree = append(copyNodes(e.tree), node)
	} else {
		e.tree = InsertReply(e.tree, *parentID, node)
	}
	e.pending[tempID] = &PendingOperation{Status: StatusSaving}
	e.unconfirmed[tempID] = true
	e.mu.Unlock()

	e.dispatch(func() { e.resolveCreate(tempID, content, parentID) })
	return tempID, nil
}

func (e *Engine) resolveCreate(tempID uuid.UUID, content string, parentID *uuid.UUID) {
	wireParent, ready := e.resolveParent(tempID, content, parentID)
	if !ready {
		return
	}

	confirmed, err := e.api.CreateComment(context.Background(), e.postID, content, wireParent)

	e.mu.Lock()
	if err != nil {
		// The optimistic node stays put; the retry reuses the same
		// temporary id so no second node ever appears.
		e.pending[tempID] = &PendingOperation{
			Status:       StatusError,
			ErrorMessage: err.Error(),
			Retry:        func() { e.retryCreate(tempID, content, parentID) },
		}
		e.mu.Unlock()
		return
	}

	e.confirmedID[tempID] = confirmed.ID
	delete(e.unconfirmed, tempID)
	e.adoptConfirmed(tempID, confirmed)
	delete(e.pending, tempID)
	held := e.waiting[tempID]
	delete(e.waiting, tempID)
	e.mu.Unlock()

	// Replies queued under this node's temp id can go out now that
	// the server id is known.
	for _, send := range held {
		e.dispatch(send)
	}
}

// resolveParent rewrites a temporary parent id to the id the server
// assigned. While the parent's own create is still in flight the
// child request is held and re-dispatched once the parent lands, so
// the server never sees an id it did not assign.
func (e *Engine) resolveParent(tempID uuid.UUID, content string, parentID *uuid.UUID) (*uuid.UUID, bool) {
	if parentID == nil {
		return nil, true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if real, ok := e.confirmedID[*parentID]; ok {
		return &real, true
	}
	if e.unconfirmed[*parentID] {
		e.waiting[*parentID] = append(e.waiting[*parentID],
			func() { e.resolveCreate(tempID, content, parentID) })
		return nil, false
	}
	return parentID, true
}

// adoptConfirmed swaps the temporary node for the server-confirmed
// one at the same position, carrying over any replies that were
// optimistically attached under the temporary id.
func (e *Engine) adoptConfirmed(tempID uuid.UUID, confirmed *models.Comment) {
	old := Find(e.tree, tempID)
	if old == nil {
		// Deleted while the create was in flight; nothing to
		// reconcile locally.
		log.Printf("feed: confirmed comment %s arrived after its optimistic node was removed", confirmed.ID)
		return
	}

	cp := *confirmed
	if cp.ParentID != nil {
		if real, ok := e.confirmedID[*cp.ParentID]; ok {
			cp.ParentID = &real
		}
	}
	cp.Children = make([]*models.Comment, len(old.Children))
	for i, child := range old.Children {
		adopted := *child
		realParent := confirmed.ID
		adopted.ParentID = &realParent
		cp.Children[i] = &adopted
	}
	e.tree = ReplaceNode(e.tree, tempID, &cp)
}

func (e *Engine) retryCreate(tempID uuid.UUID, content string, parentID *uuid.UUID) {
	e.mu.Lock()
	if op, ok := e.pending[tempID]; !ok || op.Status != StatusError {
		e.mu.Unlock()
		return
	}
	e.pending[tempID] = &PendingOperation{Status: StatusSaving}
	e.mu.Unlock()

	e.dispatch(func() { e.resolveCreate(tempID, content, parentID) })
}

// EditComment optimistically replaces a comment's content and issues
// the edit request. On failure the prior content is restored and the
// retry reapplies the intended edit.
func (e *Engine) EditComment(id uuid.UUID, content string) error {
	if strings.TrimSpace(content) == "" {
		return utils.NewEmptyContentError()
	}

	e.mu.Lock()
	node := Find(e.tree, id)
	if node == nil {
		e.mu.Unlock()
		return utils.NewAppError(utils.ErrNotFound, "comment not in tree", nil)
	}
	previous := node.Content
	e.tree = UpdateContent(e.tree, id, content)
	e.pending[id] = &PendingOperation{Status: StatusSaving}
	e.mu.Unlock()

	e.dispatch(func() { e.resolveEdit(id, content, previous) })
	return nil
}

func (e *Engine) resolveEdit(id uuid.UUID, content, previous string) {
	_, err := e.api.EditComment(context.Background(), id, content)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.tree = UpdateContent(e.tree, id, previous)
		e.pending[id] = &PendingOperation{
			Status:       StatusError,
			ErrorMessage: err.Error(),
			Retry:        func() { e.retryEdit(id, content, previous) },
		}
		return
	}
	delete(e.pending, id)
}

func (e *Engine) retryEdit(id uuid.UUID, content, previous string) {
	e.mu.Lock()
	if op, ok := e.pending[id]; !ok || op.Status != StatusError {
		e.mu.Unlock()
		return
	}
	e.tree = UpdateContent(e.tree, id, content)
	e.pending[id] = &PendingOperation{Status: StatusSaving}
	e.mu.Unlock()

	e.dispatch(func() { e.resolveEdit(id, content, previous) })
}

// DeleteComment optimistically removes the subtree rooted at id and
// opens the undo window. The server delete is only issued once the
// window elapses without Undo being invoked.
func (e *Engine) DeleteComment(id uuid.UUID) error {
	e.mu.Lock()
	parentID, index, ok := Locate(e.tree, id)
	if !ok {
		e.mu.Unlock()
		return utils.NewAppError(utils.ErrNotFound, "comment not in tree", nil)
	}
	subtree := Find(e.tree, id)

	e.tree = Remove(e.tree, id)
	e.pending[id] = &PendingOperation{Status: StatusSaving}
	e.undo[id] = &undoEntry{
		subtree:  subtree,
		parentID: parentID,
		index:    index,
		timer:    e.sched.AfterFunc(e.undoWindow, func() { e.windowElapsed(id) }),
	}
	e.mu.Unlock()
	return nil
}

// Undo cancels a pending delete, restoring the subtree at its exact
// pre-delete position. It reports false when the window has already
// elapsed (or there is nothing to undo).
func (e *Engine) Undo(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.undo[id]
	if !ok || entry.finalizing {
		return false
	}
	entry.timer.Stop()
	e.tree = RestoreAt(e.tree, entry.parentID, entry.index, entry.subtree)
	delete(e.undo, id)
	delete(e.pending, id)
	return true
}

func (e *Engine) windowElapsed(id uuid.UUID) {
	e.mu.Lock()
	entry, ok := e.undo[id]
	if !ok {
		// Undone before the callback ran; cancel-then-fire is a no-op.
		e.mu.Unlock()
		return
	}
	entry.finalizing = true
	e.mu.Unlock()

	e.dispatch(func() { e.resolveDelete(id) })
}

func (e *Engine) resolveDelete(id uuid.UUID) {
	err := e.api.DeleteComment(context.Background(), id)

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.undo[id]
	if !ok {
		return
	}
	delete(e.undo, id)

	if err != nil {
		// Rollback: the subtree reappears exactly once at its
		// original position instead of being silently lost.
		e.tree = RestoreAt(e.tree, entry.parentID, entry.index, entry.subtree)
		e.pending[id] = &PendingOperation{
			Status:       StatusError,
			ErrorMessage: err.Error(),
			Retry:        func() { e.retryDelete(id) },
		}
		return
	}
	delete(e.pending, id)
}

func (e *Engine) retryDelete(id uuid.UUID) {
	e.mu.Lock()
	if op, ok := e.pending[id]; !ok || op.Status != StatusError {
		e.mu.Unlock()
		return
	}
	parentID, index, ok := Locate(e.tree, id)
	if !ok {
		e.mu.Unlock()
		return
	}
	subtree := Find(e.tree, id)
	e.tree = Remove(e.tree, id)
	e.pending[id] = &PendingOperation{Status: StatusSaving}
	// No new undo window on retry; the delete goes straight out.
	e.undo[id] = &undoEntry{subtree: subtree, parentID: parentID, index: index, finalizing: true}
	e.mu.Unlock()

	e.dispatch(func() { e.resolveDelete(id) })
}
