package model

// Verb is a data-provider operation.
type Verb string

const (
	GetList          Verb = "GET_LIST"
	GetOne           Verb = "GET_ONE"
	GetMany          Verb = "GET_MANY"
	GetManyReference Verb = "GET_MANY_REFERENCE"
	// GetMatching fetches possible values for a reference input. It reaches
	// the provider as GET_LIST.
	GetMatching Verb = "GET_MATCHING"
	Create      Verb = "CREATE"
	Update      Verb = "UPDATE"
	Delete      Verb = "DELETE"
)

// Verbs lists every verb accepted by the dispatch pipeline.
var Verbs = []Verb{GetList, GetOne, GetMany, GetManyReference, GetMatching, Create, Update, Delete}

// Valid reports whether v is a known verb.
func (v Verb) Valid() bool {
	for _, known := range Verbs {
		if v == known {
			return true
		}
	}
	return false
}

// ProviderVerb returns the verb sent to the data provider.
func (v Verb) ProviderVerb() Verb {
	if v == GetMatching {
		return GetList
	}
	return v
}

// IsMutation reports whether the verb writes data.
func (v Verb) IsMutation() bool {
	return v == Create || v == Update || v == Delete
}

// RequiresTotal reports whether a provider response must carry a total.
func (v Verb) RequiresTotal() bool {
	p := v.ProviderVerb()
	return p == GetList || p == GetManyReference
}

// ReturnsList reports whether the response data is an array of records.
func (v Verb) ReturnsList() bool {
	switch v.ProviderVerb() {
	case GetList, GetMany, GetManyReference:
		return true
	}
	return false
}
