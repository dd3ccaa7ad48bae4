package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeUserIndex() *Index {
	return NewIndex([]UserIdentity{
		{ID: "u1", Name: "Jane Doe", Email: "jane@example.com"},
		{ID: "u2", Name: "John Roe", Email: "jroe@example.com"},
		{ID: "u3", Name: "Jo Park", Email: "park@example.com"},
	})
}

func TestSuggestionsCycleWraps(t *testing.T) {
	var s Suggestions
	s.Update(threeUserIndex(), "hi @", 4, 0)
	require.Len(t, s.Items(), 3)
	require.Equal(t, 0, s.Highlighted())

	res := s.HandleKey(KeyArrowUp)
	assert.True(t, res.Handled)
	assert.Equal(t, 2, s.Highlighted())

	res = s.HandleKey(KeyArrowDown)
	assert.True(t, res.Handled)
	assert.Equal(t, 0, s.Highlighted())

	s.HandleKey(KeyArrowDown)
	s.HandleKey(KeyArrowDown)
	assert.Equal(t, 2, s.Highlighted())
	s.HandleKey(KeyArrowDown)
	assert.Equal(t, 0, s.Highlighted())
}

func TestSuggestionsEnterSelectsAndEscapeCloses(t *testing.T) {
	var s Suggestions
	s.Update(threeUserIndex(), "@jo", 3, 0)
	require.Len(t, s.Items(), 2)

	s.HandleKey(KeyArrowDown)
	res := s.HandleKey(KeyEnter)
	require.NotNil(t, res.Selected)
	assert.Equal(t, "u3", res.Selected.ID)
	assert.False(t, s.IsOpen())

	s.Update(threeUserIndex(), "@jo", 3, 0)
	res = s.HandleKey(KeyEscape)
	assert.True(t, res.Handled)
	assert.Nil(t, res.Selected)
	assert.False(t, s.IsOpen())
}

func TestSuggestionsDoNotInterceptWhenEmptyOrClosed(t *testing.T) {
	var s Suggestions
	assert.False(t, s.HandleKey(KeyEnter).Handled)

	s.Update(threeUserIndex(), "@zzz", 4, 0)
	assert.True(t, s.IsOpen())
	assert.False(t, s.Active())
	assert.False(t, s.HandleKey(KeyArrowDown).Handled)
	assert.False(t, s.HandleKey(KeyEnter).Handled)
}

func TestSuggestionsRespectLimit(t *testing.T) {
	var s Suggestions
	s.Update(threeUserIndex(), "@", 1, 2)
	assert.Len(t, s.Items(), 2)
}

func TestComposerCommitsOnEnter(t *testing.T) {
	c := NewComposer(threeUserIndex(), 0)
	c.SetText("thanks @jan", 11)
	require.True(t, c.Suggestions().Active())

	handled := c.Key(KeyEnter)

	assert.True(t, handled)
	assert.Equal(t, "thanks @Jane Doe ", c.Text())
	assert.Equal(t, 17, c.Caret())
	assert.False(t, c.Suggestions().IsOpen())
}

func TestComposerDismissKeepsText(t *testing.T) {
	c := NewComposer(threeUserIndex(), 0)
	c.SetText("@jo", 3)
	c.Dismiss()

	assert.Equal(t, "@jo", c.Text())
	assert.False(t, c.Key(KeyEnter))
	_, ok := c.Anchor(MonospaceMeasurer{}, Rect{Width: 80}, Point{})
	assert.False(t, ok)
}

func TestComposersAreIndependent(t *testing.T) {
	index := threeUserIndex()
	top := NewComposer(index, 0)
	reply := NewComposer(index, 0)

	top.SetText("@ja", 3)
	reply.SetText("no mention", 10)

	assert.True(t, top.Suggestions().Active())
	assert.False(t, reply.Suggestions().IsOpen())
}
