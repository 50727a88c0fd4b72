package remotecontrol

import (
	"context"
	"sort"
	"strings"

	"mediahub.app/sessioncore/internal/core"
)

// SendPlayCommand runs the play-command path: item expansion, permission
// and media-type gating, next-episode autoplay, and finally forwarding to
// the target's controller.
func (d *Dispatcher) SendPlayCommand(ctx context.Context, controllingSessionID, targetSessionID string, req core.PlayRequest) error {
	target, controlling, err := d.resolveTargets(controllingSessionID, targetSessionID)
	if err != nil {
		return err
	}
	req.ControllingUserID = controllingUserID(controlling)

	dto := target.Snapshot()
	if dto.UserID == "" || d.userManager == nil {
		return core.NewInvalidArgument("target session has no resolved user")
	}
	user, ok := d.userManager.GetUserByID(dto.UserID)
	if !ok {
		return core.NewInvalidArgument("target session's user could not be resolved")
	}

	items, err := d.expandItems(ctx, req, *user)
	if err != nil {
		return err
	}
	if req.PlayCommand == core.PlayCommandPlayInstantMix || req.PlayCommand == core.PlayCommandPlayShuffle {
		req.PlayCommand = core.PlayCommandPlayNow
	}

	for _, item := range items {
		if d.userManager.GetPlayAccess(*user, item) != core.PlayAccessFull {
			return core.NewInvalidArgument("user is not allowed to play media")
		}
	}

	playable := target.PlayableMediaTypes()
	for _, item := range items {
		if !containsFold(playable, item.MediaType) {
			return core.NewInvalidArgument("unable to play the requested media type")
		}
	}

	items = d.applyNextEpisodeAutoplay(ctx, *user, req, items)

	req.ItemIDs = itemIDs(items)

	ctrl := target.ControllerOrNil()
	if ctrl == nil {
		return core.NewInvalidArgument("session has no active controller")
	}
	return ctrl.SendPlayCommand(ctx, req)
}

// expandItems resolves the requested item ids into a concrete playback list:
// an instant mix, or a translate-then-shuffle pass.
func (d *Dispatcher) expandItems(ctx context.Context, req core.PlayRequest, user core.User) ([]core.BaseItem, error) {
	if req.PlayCommand == core.PlayCommandPlayInstantMix {
		var all []core.BaseItem
		for _, id := range req.ItemIDs {
			item, ok := d.libraryManager.GetItemByID(id)
			if !ok {
				continue
			}
			mix, err := d.musicManager.GetInstantMixFromItem(ctx, *item, user)
			if err != nil {
				return nil, err
			}
			all = append(all, mix...)
		}
		return all, nil
	}

	var assembled []core.BaseItem
	for _, id := range req.ItemIDs {
		item, ok := d.libraryManager.GetItemByID(id)
		if !ok {
			continue
		}
		translated, err := d.translateItemForPlayback(ctx, *item)
		if err != nil {
			return nil, err
		}
		assembled = append(assembled, translated...)
	}

	if req.PlayCommand == core.PlayCommandPlayShuffle {
		assembled = d.shuffle(assembled)
	}
	return assembled, nil
}

// translateItemForPlayback resolves one requested item into its concrete
// playback list. IItemByName and Folder both resolve to their playable
// descendants, filtered
// to a single dominant media type and sorted by SortName; a leaf item is a
// single-element list.
func (d *Dispatcher) translateItemForPlayback(ctx context.Context, item core.BaseItem) ([]core.BaseItem, error) {
	if !item.IsByName() && !item.IsFolder {
		return []core.BaseItem{item}, nil
	}

	descendants, err := d.libraryManager.GetPlayableDescendants(ctx, item)
	if err != nil {
		return nil, err
	}
	return filterToDominantMediaType(descendants), nil
}

// filterToDominantMediaType groups items case-insensitively by MediaType,
// keeps the largest group (ties broken by first-seen order), and sorts the
// result by SortName.
func filterToDominantMediaType(items []core.BaseItem) []core.BaseItem {
	if len(items) == 0 {
		return nil
	}

	order := make([]string, 0, 4)
	groups := make(map[string][]core.BaseItem, 4)
	for _, item := range items {
		key := strings.ToLower(item.MediaType)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], item)
	}

	best := order[0]
	for _, key := range order[1:] {
		if len(groups[key]) > len(groups[best]) {
			best = key
		}
	}

	winner := groups[best]
	sort.SliceStable(winner, func(i, j int) bool {
		return strings.Compare(winner[i].SortName, winner[j].SortName) < 0
	})
	return winner
}

// shuffle produces a uniform random permutation via fresh random sort keys
// drawn from the injected PRNG.
func (d *Dispatcher) shuffle(items []core.BaseItem) []core.BaseItem {
	if len(items) < 2 || d.random == nil {
		return items
	}
	keys := d.random.Float64s(len(items))
	type keyed struct {
		item core.BaseItem
		key  float64
	}
	scored := make([]keyed, len(items))
	for i, item := range items {
		scored[i] = keyed{item: item, key: keys[i]}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].key < scored[j].key })
	out := make([]core.BaseItem, len(scored))
	for i, k := range scored {
		out[i] = k.item
	}
	return out
}

// applyNextEpisodeAutoplay swaps a single requested episode for the run of
// non-virtual episodes starting at it, when the user has autoplay enabled.
func (d *Dispatcher) applyNextEpisodeAutoplay(ctx context.Context, user core.User, req core.PlayRequest, items []core.BaseItem) []core.BaseItem {
	if !user.EnableNextEpisodeAutoPlay || len(req.ItemIDs) != 1 || len(items) != 1 {
		return items
	}
	episode := items[0].AsEpisode()
	if episode == nil {
		return items
	}

	series, err := d.libraryManager.GetSeriesEpisodes(ctx, episode.SeriesID)
	if err != nil || len(series) == 0 {
		return items
	}

	startIdx := -1
	for i, ep := range series {
		if ep.ID == items[0].ID {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return items
	}

	var out []core.BaseItem
	for _, ep := range series[startIdx:] {
		if ep.IsVirtualItem {
			continue
		}
		out = append(out, ep)
	}
	if len(out) == 0 {
		return items
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func itemIDs(items []core.BaseItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
