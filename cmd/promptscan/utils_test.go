package promptscan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickHelpers(t *testing.T) {
	env, local, global := "env", "local", "global"
	assert.Equal(t, "cli", pickString("cli", &env, &local, &global))
	assert.Equal(t, "env", pickString("", &env, &local, &global))
	assert.Equal(t, "global", pickString("", nil, nil, &global))
	assert.Equal(t, "", pickString(""))

	three, four := 3, 4
	assert.Equal(t, 3, pickInt(0, nil, &three, &four))
	assert.Equal(t, 9, pickInt(9, &three))

	var big int64 = 1 << 10
	assert.Equal(t, big, pickInt64(0, nil, &big))

	half := 0.5
	assert.Equal(t, 0.5, pickFloat(0, &half))

	f, tr := false, true
	assert.True(t, pickBool(true, &f))
	assert.False(t, pickBool(false, &f, &tr))
	assert.True(t, pickBool(false, nil, &tr))
}

func TestPickDuration(t *testing.T) {
	d, err := pickDuration(time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	s := "150ms"
	d, err = pickDuration(0, nil, &s)
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, d)

	bad := "later"
	_, err = pickDuration(0, &bad)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestClassifierBudget(t *testing.T) {
	assert.Equal(t, 5*time.Second, classifierBudget(10*time.Second))
	assert.Equal(t, time.Duration(0), classifierBudget(0))
}
