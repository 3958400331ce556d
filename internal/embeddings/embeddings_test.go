package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProvider struct {
	dims int
	vecs [][]float32
	err  error
}

func (f *fixedProvider) Name() string    { return "fixed" }
func (f *fixedProvider) Dimensions() int { return f.dims }
func (f *fixedProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vecs, nil
}

func TestWrapToDimsPassThroughWhenMatching(t *testing.T) {
	base := &fixedProvider{dims: 4}
	assert.Same(t, Provider(base), WrapToDims(base, 4))
	assert.Nil(t, WrapToDims(nil, 4))
}

func TestWrapToDimsPadsAndTruncates(t *testing.T) {
	base := &fixedProvider{dims: 3, vecs: [][]float32{{1, 2, 3}}}

	padded := WrapToDims(base, 5)
	assert.Equal(t, 5, padded.Dimensions())
	vecs, err := padded.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 0, 0}, vecs[0])

	truncated := WrapToDims(base, 2)
	vecs, err = truncated.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vecs[0])
}

func TestEmbedOne(t *testing.T) {
	p := &fixedProvider{dims: 2, vecs: [][]float32{{0.5, 0.5}}}
	vec, err := EmbedOne(context.Background(), p, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)

	boom := errors.New("provider down")
	_, err = EmbedOne(context.Background(), &fixedProvider{err: boom}, "hello")
	assert.ErrorIs(t, err, boom)

	_, err = EmbedOne(context.Background(), &fixedProvider{vecs: [][]float32{{1}, {2}}}, "hello")
	assert.Error(t, err, "wrong cardinality must error")
}
