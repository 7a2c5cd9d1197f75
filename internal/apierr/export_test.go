package apierr

// WithRand returns p with a deterministic random source.
func WithRand(p RetryPolicy, f func() float64) RetryPolicy {
	p.rand = f
	return p
}
