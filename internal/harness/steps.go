package harness

import (
	"fmt"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/engine"
	"github.com/roach88/admincache/internal/model"
)

// dispatch turns a step into an engine call. It fails only on step
// arguments that cannot be converted; everything else is the engine's to
// judge.
func (h *Harness) dispatch(step Step) (*engine.Ticket, error) {
	e := h.engine
	switch step.Do {
	case StepRequestList:
		lp, err := h.listParams(step, true)
		if err != nil {
			return nil, err
		}
		return e.RequestList(step.Resource, lp), nil

	case StepRequestOne:
		id, err := model.NormalizeID(step.ID)
		if err != nil {
			return nil, err
		}
		return e.RequestOne(step.Resource, id, engine.OneOptions{BasePath: step.BasePath}), nil

	case StepRequestMany:
		ids, err := model.NormalizeIDs(step.IDs)
		if err != nil {
			return nil, err
		}
		return e.RequestMany(step.Resource, ids), nil

	case StepRequestManyReference:
		id, err := model.NormalizeID(step.ID)
		if err != nil {
			return nil, err
		}
		lp, err := h.listParams(step, false)
		if err != nil {
			return nil, err
		}
		return e.RequestManyReference(engine.ManyReferenceRequest{
			Source:    step.Source,
			Reference: step.Resource,
			Target:    step.Target,
			ID:        id,
			Params:    lp,
		}), nil

	case StepRequestCreate:
		return e.RequestCreate(step.Resource, model.Record(step.Data), mutationOptions(step)), nil

	case StepRequestUpdate:
		id, err := model.NormalizeID(step.ID)
		if err != nil {
			return nil, err
		}
		previous, _ := e.State().GetByID(step.Resource, id)
		return e.RequestUpdate(step.Resource, id, model.Record(step.Data), previous, mutationOptions(step)), nil

	case StepRequestDelete:
		id, err := model.NormalizeID(step.ID)
		if err != nil {
			return nil, err
		}
		previous, _ := e.State().GetByID(step.Resource, id)
		return e.RequestDelete(step.Resource, id, previous, mutationOptions(step)), nil

	case StepSetSort:
		if step.Sort == nil || step.Sort.Field == "" {
			return nil, fmt.Errorf("sort.field is required")
		}
		var order model.SortOrder
		if step.Sort.Order != "" {
			o, err := model.ParseSortOrder(step.Sort.Order)
			if err != nil {
				return nil, err
			}
			order = o
		}
		return e.SetSort(step.Resource, step.Sort.Field, order), nil

	case StepSetFilter:
		return e.SetFilter(step.Resource, model.Filter(step.Filter)), nil

	case StepSetPage:
		return e.SetPage(step.Resource, step.Page), nil

	case StepSetPerPage:
		return e.SetPerPage(step.Resource, step.PerPage), nil

	case StepChangeSelection:
		ids, err := model.NormalizeIDs(step.IDs)
		if err != nil {
			return nil, err
		}
		selected := true
		if step.Selected != nil {
			selected = *step.Selected
		}
		mode := cache.SelectPage
		if step.Mode != "" {
			m, err := cache.ParseSelectionMode(step.Mode)
			if err != nil {
				return nil, err
			}
			mode = m
		}
		return e.ChangeSelection(step.Resource, ids, selected, mode), nil

	case StepClearSelection:
		return e.ClearSelection(step.Resource), nil

	case StepBulkDelete:
		ids, err := model.NormalizeIDs(step.IDs)
		if err != nil {
			return nil, err
		}
		policy := cache.BulkPolicy{KeepSelectionFailed: step.KeepFailed}
		return e.BulkDelete(step.Resource, ids, policy, mutationOptions(step)), nil

	case StepBulkUpdate:
		ids, err := model.NormalizeIDs(step.IDs)
		if err != nil {
			return nil, err
		}
		policy := cache.BulkPolicy{KeepSelectionFailed: step.KeepFailed}
		return e.BulkUpdate(step.Resource, ids, model.Record(step.Data), policy, mutationOptions(step)), nil
	}
	return nil, fmt.Errorf("unknown step %q", step.Do)
}

// listParams applies the step's overrides to a base: the resource's current
// list params when current is set, its definition defaults otherwise.
func (h *Harness) listParams(step Step, current bool) (model.ListParams, error) {
	var lp model.ListParams
	list, listed := h.engine.State().List(step.Resource)
	if current && listed {
		lp = list.Params
	} else if def, ok := h.engine.State().Definition(step.Resource); ok {
		lp = def.ListDefaults()
	} else {
		lp = model.DefaultListParams(model.DefaultPerPage, model.DefaultSort)
	}
	lp.Filter = lp.Filter.Clone()

	if step.Page > 0 {
		lp.Pagination.Page = step.Page
	}
	if step.PerPage > 0 {
		lp.Pagination.PerPage = step.PerPage
	}
	if step.Sort != nil {
		lp.Sort.Field = step.Sort.Field
		if step.Sort.Order != "" {
			order, err := model.ParseSortOrder(step.Sort.Order)
			if err != nil {
				return model.ListParams{}, err
			}
			lp.Sort.Order = order
		}
	}
	if step.Filter != nil {
		lp.Filter = model.Filter(step.Filter).Clone()
	}
	return lp, nil
}

func mutationOptions(step Step) engine.MutationOptions {
	return engine.MutationOptions{
		BasePath:   step.BasePath,
		RedirectTo: engine.RedirectTo(step.Redirect),
	}
}
