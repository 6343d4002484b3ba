// Package remote implements authority.Client over the authority's HTTP API.
//
//	c, err := remote.New(cfg.Authority, cfg.Driver.ServiceName)
//	if err != nil {
//	    return err
//	}
//	client := c.Authority()
//
// Failure envelopes come back as *authority.EnvelopeError, so
// errors.Is(err, authority.ErrNotFound) holds for a 404. Transport failures
// and answers that are not envelopes match authority.ErrUnavailable, and
// calls short-circuited by the breaker match authority.ErrCircuitOpen.
package remote
