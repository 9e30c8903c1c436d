// Package items holds the bookkeeping rules for dropped item stacks: which
// stack a new drop merges into and which stacks have expired.
package items

import "sort"

type Entry struct {
	ID          string
	Item        string
	Count       int
	ExpiresTick uint64
}

type LookupFunc func(id string) (Entry, bool)

// FindMergeTarget returns the first live stack of item among ids.
func FindMergeTarget(ids []string, item string, load LookupFunc) (string, bool) {
	if load == nil || item == "" {
		return "", false
	}
	for _, id := range ids {
		e, ok := load(id)
		if !ok || e.Item != item || e.Count <= 0 {
			continue
		}
		return e.ID, true
	}
	return "", false
}

// ExtendExpiry pushes the expiry to nowTick+ttl unless it is already later.
func ExtendExpiry(cur, nowTick, ttl uint64) uint64 {
	if ttl == 0 {
		return cur
	}
	if exp := nowTick + ttl; exp > cur {
		return exp
	}
	return cur
}

func RemoveID(ids []string, id string) []string {
	for i := range ids {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// SortedExpired lists ids whose expiry is set and reached, in id order.
func SortedExpired(ids []string, load LookupFunc, nowTick uint64) []string {
	var out []string
	if load == nil {
		return out
	}
	for _, id := range ids {
		e, ok := load(id)
		if !ok || e.ExpiresTick == 0 || nowTick < e.ExpiresTick {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
