package feed

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrove/internal/models"
)

func node(content string, children ...*models.Comment) *models.Comment {
	if children == nil {
		children = make([]*models.Comment, 0)
	}
	return &models.Comment{ID: uuid.New(), Content: content, Children: children}
}

func TestFindSearchesAllDepths(t *testing.T) {
	deep := node("deep")
	tree := []*models.Comment{node("a"), node("b", node("mid", deep))}

	assert.Equal(t, deep, Find(tree, deep.ID))
	assert.Nil(t, Find(tree, uuid.New()))
}

func TestLocateReportsParentAndIndex(t *testing.T) {
	c1 := node("first child")
	c2 := node("second child")
	parent := node("parent", c1, c2)
	tree := []*models.Comment{node("top"), parent}

	pid, idx, ok := Locate(tree, c2.ID)
	require.True(t, ok)
	require.NotNil(t, pid)
	assert.Equal(t, parent.ID, *pid)
	assert.Equal(t, 1, idx)

	pid, idx, ok = Locate(tree, parent.ID)
	require.True(t, ok)
	assert.Nil(t, pid, "top-level node has nil parent")
	assert.Equal(t, 1, idx)

	_, _, ok = Locate(tree, uuid.New())
	assert.False(t, ok)
}

func TestInsertReplyDoesNotMutateInput(t *testing.T) {
	parent := node("parent")
	tree := []*models.Comment{parent}

	reply := node("reply")
	out := InsertReply(tree, parent.ID, reply)

	require.Len(t, out[0].Children, 1)
	assert.Empty(t, parent.Children, "original node untouched")
	assert.Empty(t, tree[0].Children, "original forest is a valid snapshot")
}

func TestInsertReplyMissingParentUnchanged(t *testing.T) {
	tree := []*models.Comment{node("only")}
	out := InsertReply(tree, uuid.New(), node("orphan"))

	assert.Len(t, out, 1)
	assert.Empty(t, out[0].Children, "reply never promoted to top level")
}

func TestUpdateContentDeepAndCopyOnWrite(t *testing.T) {
	target := node("before")
	tree := []*models.Comment{node("top", node("mid", target))}

	out := UpdateContent(tree, target.ID, "after")

	assert.Equal(t, "after", Find(out, target.ID).Content)
	assert.Equal(t, "before", target.Content, "old snapshot keeps old content")
	assert.NotSame(t, tree[0], out[0], "path to target is copied")
}

func TestRemoveExcisesSubtree(t *testing.T) {
	grandchild := node("gc")
	child := node("child", grandchild)
	tree := []*models.Comment{node("top", child), node("sibling")}

	out := Remove(tree, child.ID)

	assert.Nil(t, Find(out, child.ID))
	assert.Nil(t, Find(out, grandchild.ID), "descendants go with the subtree")
	assert.NotNil(t, Find(out, tree[1].ID))
	assert.NotNil(t, Find(tree, child.ID), "input forest unchanged")
}

func TestRestoreAtTopLevelAndNested(t *testing.T) {
	a, b := node("a"), node("b")
	tree := []*models.Comment{a, b}

	restored := node("restored")
	out := RestoreAt(tree, nil, 1, restored)
	require.Len(t, out, 3)
	assert.Equal(t, restored.ID, out[1].ID)

	parent := node("parent", node("c0"), node("c1"))
	out = RestoreAt([]*models.Comment{parent}, &parent.ID, 1, restored)
	require.Len(t, out[0].Children, 3)
	assert.Equal(t, restored.ID, out[0].Children[1].ID)
}

func TestRestoreAtClampsIndex(t *testing.T) {
	tree := []*models.Comment{node("a")}

	out := RestoreAt(tree, nil, 99, node("high"))
	require.Len(t, out, 2)
	assert.Equal(t, "high", out[1].Content)

	out = RestoreAt(tree, nil, -5, node("low"))
	require.Len(t, out, 2)
	assert.Equal(t, "low", out[0].Content)
}

func TestReplaceNodeKeepsPosition(t *testing.T) {
	old := node("old", node("kept child"))
	tree := []*models.Comment{node("first"), old, node("last")}

	fresh := node("fresh")
	out := ReplaceNode(tree, old.ID, fresh)

	require.Len(t, out, 3)
	assert.Equal(t, fresh.ID, out[1].ID)
	assert.Empty(t, out[1].Children, "replacement children are the caller's call")
	assert.NotNil(t, Find(tree, old.ID), "input forest unchanged")
}
