package engine

import (
	"iggrowth/pkg/instagram"
	"iggrowth/pkg/ledger"
	"iggrowth/pkg/metrics"
)

// runGoodUserFilter pulls candidates from next and applies the good-user
// pipeline, acting on survivors up to limit. The stage order is load-bearing:
//
//  1. drop candidates already blacklisted
//  2. drop candidates we already follow
//  3. blacklist every remaining candidate unconditionally; the blacklist is
//     a memoization device, so even candidates the ratio check rejects are
//     never scanned (and never ratio-fetched) again
//  4. optionally drop private accounts
//  5. drop candidates whose follower/following ratio is at or above the
//     threshold; low-ratio accounts are the ones likely to follow back
//  6. act and record an action for each survivor
//
// Returns the number of candidates acted on.
func (e *Engine) runGoodUserFilter(
	next func() (instagram.UserSummary, bool, error),
	source string,
	actionType ledger.ActionType,
	limit int,
	act func(instagram.UserSummary) error,
) (int, error) {
	blacklist, err := e.ledger.BlacklistSet(e.ourPK())
	if err != nil {
		return 0, err
	}

	following, err := e.api.Following(e.ourPK())
	if err != nil {
		return 0, err
	}
	followingSet := make(map[int64]struct{}, len(following))
	for _, f := range following {
		followingSet[f.PK] = struct{}{}
	}

	acted := 0
	for acted < limit {
		candidate, ok, err := next()
		if err != nil {
			return acted, err
		}
		if !ok {
			break
		}

		if _, listed := blacklist[candidate.PK]; listed {
			metrics.CandidatesFiltered.WithLabelValues("blacklisted").Inc()
			continue
		}
		if _, followed := followingSet[candidate.PK]; followed {
			metrics.CandidatesFiltered.WithLabelValues("already_following").Inc()
			continue
		}

		if err := e.ledger.Blacklist(e.ourPK(), candidate.PK, ledger.ScannedWhenCopying); err != nil {
			return acted, err
		}
		blacklist[candidate.PK] = struct{}{}

		if e.filter.SkipPrivate && candidate.IsPrivate {
			metrics.CandidatesFiltered.WithLabelValues("private").Inc()
			continue
		}

		full, err := e.api.GetUser(candidate.Username)
		if err != nil {
			return acted, err
		}
		e.snapshot(full)

		if full.Ratio() >= e.filter.MaxRatio {
			metrics.CandidatesFiltered.WithLabelValues("ratio").Inc()
			continue
		}

		e.log.InfoWithFields("acting on candidate", map[string]interface{}{
			"pk": candidate.PK, "username": candidate.Username,
			"source": source, "action_type": string(actionType),
		})
		if err := act(candidate); err != nil {
			return acted, err
		}
		if err := e.ledger.RecordAction(e.ourPK(), candidate.PK, candidate.Username, source, actionType); err != nil {
			return acted, err
		}
		acted++
	}

	return acted, nil
}
