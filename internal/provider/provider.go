package provider

import (
	"context"
	"fmt"

	"github.com/roach88/admincache/internal/model"
)

// Response is the raw result of a data-provider call.
//
// Data holds a record (map[string]any or model.Record) for single-record
// verbs and an array of records for GET_LIST, GET_MANY and
// GET_MANY_REFERENCE. HasData distinguishes a missing data key from a null
// one when a provider decodes JSON itself.
type Response struct {
	Data    any
	HasData bool
	Total   *int
}

// NewResponse builds a response carrying data.
func NewResponse(data any) *Response {
	return &Response{Data: data, HasData: true}
}

// NewListResponse builds a list response carrying data and total.
func NewListResponse(data any, total int) *Response {
	return &Response{Data: data, HasData: true, Total: &total}
}

// DataProvider performs one backend call. verb is never GET_MATCHING; the
// engine translates it to GET_LIST before calling.
type DataProvider interface {
	Fetch(ctx context.Context, verb model.Verb, resource string, params model.Params) (*Response, error)
}

// Func adapts a function to DataProvider.
type Func func(ctx context.Context, verb model.Verb, resource string, params model.Params) (*Response, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, verb model.Verb, resource string, params model.Params) (*Response, error) {
	return f(ctx, verb, resource, params)
}

// Result is a validated response.
type Result struct {
	Records []model.Record
	IDs     []model.ID
	Total   int
}

// Record returns the single record of a one-record verb.
func (r Result) Record() model.Record {
	if len(r.Records) == 0 {
		return nil
	}
	return r.Records[0]
}

// Validate checks a response against the data-provider contract for verb
// and normalizes it.
func Validate(verb model.Verb, resp *Response) (Result, error) {
	if resp == nil || !resp.HasData {
		return Result{}, &ContractError{Verb: verb, Reason: "response must contain a data key"}
	}
	if verb.RequiresTotal() && resp.Total == nil {
		return Result{}, &ContractError{Verb: verb, Reason: "response must contain a total key"}
	}

	var records []model.Record
	if verb.ReturnsList() {
		recs, err := model.ToRecords(resp.Data)
		if err != nil {
			return Result{}, &ContractError{Verb: verb, Reason: fmt.Sprintf("data must be an array of records: %v", err)}
		}
		records = recs
	} else {
		if verb == model.Delete && resp.Data == nil {
			return Result{}, nil
		}
		rec, err := model.ToRecord(resp.Data)
		if err != nil {
			return Result{}, &ContractError{Verb: verb, Reason: fmt.Sprintf("data must be a record: %v", err)}
		}
		records = []model.Record{rec}
	}

	ids, err := model.RecordIDs(records)
	if err != nil {
		return Result{}, &ContractError{Verb: verb, Reason: err.Error()}
	}

	res := Result{Records: records, IDs: ids, Total: len(records)}
	if resp.Total != nil {
		res.Total = *resp.Total
	}
	return res, nil
}
