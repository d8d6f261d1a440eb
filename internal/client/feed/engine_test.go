package feed

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrove/internal/models"
	"mangrove/internal/utils"
)

// manualTimer and manualScheduler let tests drive the undo window
// without waiting on real time.
type manualTimer struct {
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type manualScheduler struct {
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(_ time.Duration, fn func()) Timer {
	t := &manualTimer{fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// fire runs every armed timer that has not been stopped.
func (s *manualScheduler) fire() {
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			t.fn()
		}
	}
}

// fakeAPI scripts server responses per operation.
type fakeAPI struct {
	createErr  error
	editErr    error
	deleteErr  error
	created    []*models.Comment
	deletedIDs []uuid.UUID
}

func (f *fakeAPI) CreateComment(_ context.Context, postID uuid.UUID, content string, parentID *uuid.UUID) (*models.Comment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	c := &models.Comment{
		ID:        uuid.New(),
		Content:   content,
		PostID:    postID,
		ParentID:  parentID,
		Children:  make([]*models.Comment, 0),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.created = append(f.created, c)
	return c, nil
}

func (f *fakeAPI) EditComment(_ context.Context, commentID uuid.UUID, content string) (*models.Comment, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &models.Comment{ID: commentID, Content: content, UpdatedAt: time.Now()}, nil
}

func (f *fakeAPI) DeleteComment(_ context.Context, commentID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, commentID)
	return nil
}

// queuedRuns holds dispatched network callbacks so tests control
// exactly when each one resolves.
type testHarness struct {
	engine *Engine
	api    *fakeAPI
	sched  *manualScheduler
	queued []func()
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		api:   &fakeAPI{},
		sched: &manualScheduler{},
	}
	h.engine = NewEngine(uuid.New(), Identity{UserID: uuid.New(), Username: "mallory"}, h.api, h.sched, DefaultUndoWindow)
	h.engine.dispatch = func(fn func()) { h.queued = append(h.queued, fn) }
	return h
}

// resolve runs every queued network callback.
func (h *testHarness) resolve() {
	for len(h.queued) > 0 {
		fn := h.queued[0]
		h.queued = h.queued[1:]
		fn()
	}
}

func TestAddCommentAppearsImmediately(t *testing.T) {
	h := newHarness(t)

	tempID, err := h.engine.AddComment("first!")
	require.NoError(t, err)

	node := Find(h.engine.Tree(), tempID)
	require.NotNil(t, node)
	assert.Equal(t, "first!", node.Content)
	assert.Equal(t, "mallory", node.AuthorUsername)

	op, ok := h.engine.Pending(tempID)
	require.True(t, ok)
	assert.Equal(t, StatusSaving, op.Status)

	h.resolve()

	_, ok = h.engine.Pending(tempID)
	assert.False(t, ok, "pending state cleared on confirmation")
	assert.Nil(t, Find(h.engine.Tree(), tempID), "temp id replaced")
	require.Len(t, h.api.created, 1)
	assert.NotNil(t, Find(h.engine.Tree(), h.api.created[0].ID))
}

func TestEmptyContentRejectedLocally(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.AddComment("   ")
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrEmptyContent))
	assert.Empty(t, h.engine.Tree())
	assert.Empty(t, h.queued, "no network call for invalid input")
}

func TestReplyUnderUnconfirmedParentSurvivesConfirmation(t *testing.T) {
	h := newHarness(t)

	parentTemp, err := h.engine.AddComment("parent")
	require.NoError(t, err)

	// The reply lands while the parent is still on its temp id.
	replyTemp, err := h.engine.Reply(parentTemp, "child")
	require.NoError(t, err)

	parent := Find(h.engine.Tree(), parentTemp)
	require.NotNil(t, parent)
	require.Len(t, parent.Children, 1)

	h.resolve()

	require.Len(t, h.api.created, 2)
	confirmed := Find(h.engine.Tree(), h.api.created[0].ID)
	require.NotNil(t, confirmed, "parent replaced by confirmed node")
	require.Len(t, confirmed.Children, 1, "accumulated reply preserved")

	child := confirmed.Children[0]
	require.NotNil(t, child.ParentID)
	assert.Equal(t, confirmed.ID, *child.ParentID, "child reparented to confirmed id")
	assert.NotEqual(t, replyTemp, child.ID, "reply itself also confirmed")
}

// strictAPI refuses creates whose parent id it never assigned, the
// way the server's comment actor does.
type strictAPI struct {
	issued    map[uuid.UUID]bool
	created   []*models.Comment
	rejected  []uuid.UUID
	createErr error
}

func (f *strictAPI) CreateComment(_ context.Context, postID uuid.UUID, content string, parentID *uuid.UUID) (*models.Comment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if parentID != nil && !f.issued[*parentID] {
		f.rejected = append(f.rejected, *parentID)
		return nil, utils.NewAppError(utils.ErrNotFound, "parent comment not found", nil)
	}
	c := &models.Comment{
		ID:        uuid.New(),
		Content:   content,
		PostID:    postID,
		ParentID:  parentID,
		Children:  make([]*models.Comment, 0),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.issued[c.ID] = true
	f.created = append(f.created, c)
	return c, nil
}

func (f *strictAPI) EditComment(_ context.Context, commentID uuid.UUID, content string) (*models.Comment, error) {
	return &models.Comment{ID: commentID, Content: content, UpdatedAt: time.Now()}, nil
}

func (f *strictAPI) DeleteComment(context.Context, uuid.UUID) error { return nil }

func newStrictHarness(api *strictAPI) (*Engine, *[]func()) {
	e := NewEngine(uuid.New(), Identity{UserID: uuid.New(), Username: "mallory"}, api, &manualScheduler{}, DefaultUndoWindow)
	queued := &[]func(){}
	e.dispatch = func(fn func()) { *queued = append(*queued, fn) }
	return e, queued
}

func drain(queued *[]func()) {
	for len(*queued) > 0 {
		fn := (*queued)[0]
		*queued = (*queued)[1:]
		fn()
	}
}

func TestReplyWireParentIsServerAssignedID(t *testing.T) {
	api := &strictAPI{issued: make(map[uuid.UUID]bool)}
	e, queued := newStrictHarness(api)

	parentTemp, err := e.AddComment("parent")
	require.NoError(t, err)
	replyTemp, err := e.Reply(parentTemp, "child")
	require.NoError(t, err)

	drain(queued)

	assert.Empty(t, api.rejected, "server never sees a temporary id")
	require.Len(t, api.created, 2)
	require.NotNil(t, api.created[1].ParentID)
	assert.Equal(t, api.created[0].ID, *api.created[1].ParentID)

	_, ok := e.Pending(replyTemp)
	assert.False(t, ok, "reply confirmed, not stuck in error")

	parent := Find(e.Tree(), api.created[0].ID)
	require.NotNil(t, parent)
	require.Len(t, parent.Children, 1)
	child := parent.Children[0]
	assert.Equal(t, api.created[1].ID, child.ID)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestReplyDispatchedBeforeParentConfirmationIsHeld(t *testing.T) {
	api := &strictAPI{issued: make(map[uuid.UUID]bool)}
	e, queued := newStrictHarness(api)

	parentTemp, err := e.AddComment("parent")
	require.NoError(t, err)
	replyTemp, err := e.Reply(parentTemp, "child")
	require.NoError(t, err)

	require.Len(t, *queued, 2)
	parentDispatch, childDispatch := (*queued)[0], (*queued)[1]
	*queued = nil

	// The reply's network half runs while the parent is still on its
	// temporary id. The request is held, not sent.
	childDispatch()
	assert.Empty(t, api.created, "no request goes out with an unassigned parent id")
	op, ok := e.Pending(replyTemp)
	require.True(t, ok)
	assert.Equal(t, StatusSaving, op.Status)

	// Parent confirmation releases the held reply.
	parentDispatch()
	drain(queued)

	assert.Empty(t, api.rejected)
	require.Len(t, api.created, 2)
	assert.Equal(t, api.created[0].ID, *api.created[1].ParentID)
	_, ok = e.Pending(replyTemp)
	assert.False(t, ok)
}

func TestHeldReplyReleasedByParentRetry(t *testing.T) {
	api := &strictAPI{issued: make(map[uuid.UUID]bool)}
	api.createErr = utils.NewAppError(utils.ErrNetwork, "connection refused", nil)
	e, queued := newStrictHarness(api)

	parentTemp, err := e.AddComment("parent")
	require.NoError(t, err)
	replyTemp, err := e.Reply(parentTemp, "child")
	require.NoError(t, err)

	drain(queued)

	parentOp, ok := e.Pending(parentTemp)
	require.True(t, ok)
	require.Equal(t, StatusError, parentOp.Status)
	replyOp, ok := e.Pending(replyTemp)
	require.True(t, ok)
	assert.Equal(t, StatusSaving, replyOp.Status, "held reply is not failed, just waiting")
	assert.Empty(t, api.created)

	api.createErr = nil
	parentOp.Retry()
	drain(queued)

	assert.Empty(t, api.rejected, "retry resolves the parent id before the reply goes out")
	require.Len(t, api.created, 2)
	require.NotNil(t, api.created[1].ParentID)
	assert.Equal(t, api.created[0].ID, *api.created[1].ParentID)
	_, ok = e.Pending(replyTemp)
	assert.False(t, ok)
}

func TestFailedCreateKeepsNodeAndRetriesWithSameID(t *testing.T) {
	h := newHarness(t)
	h.api.createErr = utils.NewAppError(utils.ErrNetwork, "connection refused", nil)

	tempID, err := h.engine.AddComment("flaky")
	require.NoError(t, err)
	h.resolve()

	op, ok := h.engine.Pending(tempID)
	require.True(t, ok)
	assert.Equal(t, StatusError, op.Status)
	assert.Contains(t, op.ErrorMessage, "connection refused")
	require.NotNil(t, Find(h.engine.Tree(), tempID), "failed node stays visible")

	h.api.createErr = nil
	op.Retry()
	h.resolve()

	assert.Nil(t, Find(h.engine.Tree(), tempID))
	require.Len(t, h.api.created, 1, "retry creates exactly one server row")
	assert.Len(t, h.engine.Tree(), 1, "no duplicate optimistic node")
}

func TestEditRevertsOnFailureAndRetries(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.AddComment("original")
	require.NoError(t, err)
	h.resolve()
	confirmedID := h.api.created[0].ID

	h.api.editErr = utils.NewAppError(utils.ErrServer, "write conflict", nil)
	require.NoError(t, h.engine.EditComment(confirmedID, "edited"))
	assert.Equal(t, "edited", Find(h.engine.Tree(), confirmedID).Content, "edit visible before resolution")

	h.resolve()
	assert.Equal(t, "original", Find(h.engine.Tree(), confirmedID).Content, "reverted on failure")

	op, ok := h.engine.Pending(confirmedID)
	require.True(t, ok)
	require.Equal(t, StatusError, op.Status)

	h.api.editErr = nil
	op.Retry()
	assert.Equal(t, "edited", Find(h.engine.Tree(), confirmedID).Content, "retry reapplies the edit")
	h.resolve()
	_, ok = h.engine.Pending(confirmedID)
	assert.False(t, ok)
}

func TestEditMissingCommentIsError(t *testing.T) {
	h := newHarness(t)
	err := h.engine.EditComment(uuid.New(), "anything")
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func seedTree(h *testHarness, n int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, n)
	tree := make([]*models.Comment, 0, n)
	for i := 0; i < n; i++ {
		c := &models.Comment{ID: uuid.New(), Content: "c", Children: make([]*models.Comment, 0)}
		tree = append(tree, c)
		ids = append(ids, c.ID)
	}
	h.engine.Load(tree)
	return ids
}

func TestUndoRestoresExactPosition(t *testing.T) {
	h := newHarness(t)
	ids := seedTree(h, 4)

	require.NoError(t, h.engine.DeleteComment(ids[2]))
	assert.Nil(t, Find(h.engine.Tree(), ids[2]))
	assert.True(t, h.engine.CanUndo(ids[2]))

	require.True(t, h.engine.Undo(ids[2]))

	tree := h.engine.Tree()
	require.Len(t, tree, 4)
	assert.Equal(t, ids[2], tree[2].ID, "restored at original sibling index")
	assert.False(t, h.engine.CanUndo(ids[2]))
	assert.Empty(t, h.api.deletedIDs, "server never sees an undone delete")
	_, ok := h.engine.Pending(ids[2])
	assert.False(t, ok)
}

func TestDeleteFinalizesAfterWindow(t *testing.T) {
	h := newHarness(t)
	ids := seedTree(h, 2)

	require.NoError(t, h.engine.DeleteComment(ids[0]))
	h.sched.fire()
	h.resolve()

	assert.Equal(t, []uuid.UUID{ids[0]}, h.api.deletedIDs)
	assert.Nil(t, Find(h.engine.Tree(), ids[0]))
	assert.False(t, h.engine.Undo(ids[0]), "undo refused once finalized")
}

func TestUndoRefusedOnceFinalizing(t *testing.T) {
	h := newHarness(t)
	ids := seedTree(h, 1)

	require.NoError(t, h.engine.DeleteComment(ids[0]))
	h.sched.fire()
	// Window elapsed but the network call has not resolved yet.
	assert.False(t, h.engine.Undo(ids[0]))
	h.resolve()
	assert.Nil(t, Find(h.engine.Tree(), ids[0]))
}

func TestFailedDeleteRollsBackOnce(t *testing.T) {
	h := newHarness(t)
	ids := seedTree(h, 3)
	h.api.deleteErr = utils.NewAppError(utils.ErrNetwork, "timeout", nil)

	require.NoError(t, h.engine.DeleteComment(ids[1]))
	h.sched.fire()
	h.resolve()

	tree := h.engine.Tree()
	require.Len(t, tree, 3, "subtree restored after failed delete")
	assert.Equal(t, ids[1], tree[1].ID)

	op, ok := h.engine.Pending(ids[1])
	require.True(t, ok)
	require.Equal(t, StatusError, op.Status)

	h.api.deleteErr = nil
	op.Retry()
	h.resolve()

	assert.Len(t, h.engine.Tree(), 2)
	assert.Equal(t, []uuid.UUID{ids[1]}, h.api.deletedIDs)
}

func TestDeleteSubtreeUndoBringsBackDescendants(t *testing.T) {
	h := newHarness(t)

	child := &models.Comment{ID: uuid.New(), Content: "child", Children: make([]*models.Comment, 0)}
	parent := &models.Comment{ID: uuid.New(), Content: "parent", Children: []*models.Comment{child}}
	h.engine.Load([]*models.Comment{parent})

	require.NoError(t, h.engine.DeleteComment(parent.ID))
	assert.Empty(t, h.engine.Tree())

	require.True(t, h.engine.Undo(parent.ID))
	restored := Find(h.engine.Tree(), parent.ID)
	require.NotNil(t, restored)
	require.Len(t, restored.Children, 1)
	assert.Equal(t, child.ID, restored.Children[0].ID)
}

func TestDeleteMissingCommentIsError(t *testing.T) {
	h := newHarness(t)
	err := h.engine.DeleteComment(uuid.New())
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}
