package embeddings

import "context"

// adaptingProvider wraps a Provider and coerces its vectors to the graph
// store's configured dimensionality by zero-padding or truncating.
type adaptingProvider struct {
	base       Provider
	targetDims int
}

// WrapToDims returns a Provider whose vectors always have targetDims.
// If base already matches targetDims, base is returned unchanged.
func WrapToDims(base Provider, targetDims int) Provider {
	if base == nil || targetDims <= 0 || base.Dimensions() == targetDims {
		return base
	}
	return &adaptingProvider{base: base, targetDims: targetDims}
}

func (p *adaptingProvider) Name() string { return p.base.Name() }

func (p *adaptingProvider) Dimensions() int { return p.targetDims }

func (p *adaptingProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	vecs, err := p.base.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = adaptVector(v, p.targetDims)
	}
	return out, nil
}

func adaptVector(v []float32, target int) []float32 {
	if len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
