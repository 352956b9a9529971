package predicate

import "time"

// changedAll is the sentinel changedFields set meaning "treat every
// field as changed", used when a record is newly created, removed, or
// its attribute container changed shape rather than a scalar value.
const changedAll = "*"

// ProcessChange is invoked once per mutated key. It extracts the set of
// changed attribute names, asks the reverse index for candidate
// subscriptions, and for each candidate either skips cheaply or
// re-executes the full query to recompute a correct sliding window.
//
// newRecord is nil for a removal; oldRecord is nil for a fresh insert.
func (r *Registry) ProcessChange(mapName string, src RecordSource, key string, newRecord *Record, oldRecord *Record) {
	changed := changedFields(oldRecord, newRecord)
	if len(changed) == 0 {
		return
	}

	r.mu.Lock()
	candidates := r.candidatesFor(mapName, changed)
	r.mu.Unlock()

	for _, sub := range candidates {
		r.refreshSubscription(sub, src, key, newRecord)
	}
}

// changedFields compares old and new attribute maps. A nil record on
// either side (insert or delete) means every field is considered
// changed; a present-on-both-sides field is changed when its Value
// differs.
func changedFields(oldRecord, newRecord *Record) map[string]struct{} {
	if oldRecord == nil || newRecord == nil {
		return map[string]struct{}{changedAll: {}}
	}
	out := make(map[string]struct{})
	seen := make(map[string]struct{})
	for field, v := range oldRecord.Attributes {
		seen[field] = struct{}{}
		nv, ok := newRecord.Attributes[field]
		if !ok || !Equal(v, nv) {
			out[field] = struct{}{}
		}
	}
	for field, v := range newRecord.Attributes {
		if _, done := seen[field]; done {
			continue
		}
		ov, ok := oldRecord.Attributes[field]
		if !ok || !Equal(ov, v) {
			out[field] = struct{}{}
		}
	}
	return out
}

// candidatesFor returns every subscription that could plausibly be
// affected by a change to one of the given fields: equality matches on
// either side of the change (approximated here by scanning all buckets
// for the field, since the specific old/new value isn't threaded through
// this call), interest matches, and all wildcards. Must be called with
// r.mu held.
func (r *Registry) candidatesFor(mapName string, changed map[string]struct{}) []*subscription {
	ids := make(map[string]struct{})
	_, allChanged := changed[changedAll]

	for field := range r.equality {
		if !allChanged {
			if _, touched := changed[field]; !touched {
				continue
			}
		}
		for _, bucket := range r.equality[field] {
			for id := range bucket {
				ids[id] = struct{}{}
			}
		}
	}
	for field, bucket := range r.interest {
		if !allChanged {
			if _, touched := changed[field]; !touched {
				continue
			}
		}
		for id := range bucket {
			ids[id] = struct{}{}
		}
	}
	for id := range r.wildcard {
		ids[id] = struct{}{}
	}

	out := make([]*subscription, 0, len(ids))
	for id := range ids {
		sub, ok := r.subs[id]
		if !ok || sub.mapName != mapName {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// refreshSubscription applies the cheap-check-then-reexecute algorithm
// for one candidate subscription against one changed key.
func (r *Registry) refreshSubscription(sub *subscription, src RecordSource, key string, newRecord *Record) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	_, wasPresent := sub.previousResultKeys[key]
	approxMatch := newRecord != nil && Eval(sub.query.Where, *newRecord)
	if !wasPresent && !approxMatch {
		return
	}

	newResultKeys := toKeySet(Execute(sub.query, src))
	distributed := sub.coordNode != ""
	leaveType, enterType := ChangeRemove, ChangeUpdate
	if distributed {
		leaveType, enterType = ChangeLeave, ChangeEnter
	}

	now := time.Now()
	for k := range sub.previousResultKeys {
		if _, stillThere := newResultKeys[k]; !stillThere {
			sub.emit(mapName(sub), k, Record{}, leaveType, now)
		}
	}
	for k := range newResultKeys {
		_, wasThere := sub.previousResultKeys[k]
		if !wasThere {
			rec, ok := src.GetRecord(k)
			if ok {
				sub.emit(mapName(sub), k, rec, enterType, now)
			}
			continue
		}
		if k == key && newRecord != nil {
			sub.emit(mapName(sub), k, *newRecord, ChangeUpdate, now)
		}
	}

	sub.previousResultKeys = newResultKeys
}

func mapName(sub *subscription) string { return sub.mapName }

func (sub *subscription) emit(mapName, key string, value Record, changeType ChangeType, ts time.Time) {
	if sub.sink == nil {
		return
	}
	sub.sink.Emit(Delta{
		SubscriptionID:    sub.id,
		MapName:           mapName,
		Key:               key,
		Value:             value,
		Type:              changeType,
		Timestamp:         ts,
		CoordinatorNodeID: sub.coordNode,
	})
}
