package engine

import (
	"net/url"
	"strings"

	"github.com/roach88/admincache/internal/model"
)

// RedirectTo names where a successful mutation navigates. Values other than
// the constants below must be absolute paths and are used verbatim.
type RedirectTo string

const (
	RedirectList   RedirectTo = "list"
	RedirectEdit   RedirectTo = "edit"
	RedirectShow   RedirectTo = "show"
	RedirectCreate RedirectTo = "create"
	RedirectNone   RedirectTo = "none"
)

// DefaultBasePath is the route prefix of a resource that sets none.
func DefaultBasePath(resource string) string {
	return "/" + resource
}

// ResolveRedirect turns a redirect target into a path. It returns "" when
// no navigation should happen.
func ResolveRedirect(to RedirectTo, basePath string, id model.ID) string {
	switch to {
	case "", RedirectNone:
		return ""
	case RedirectList:
		return basePath
	case RedirectCreate:
		return basePath + "/create"
	case RedirectEdit:
		return linkToRecord(basePath, id)
	case RedirectShow:
		return linkToRecord(basePath, id) + "/show"
	}
	if strings.HasPrefix(string(to), "/") {
		return string(to)
	}
	return ""
}

func linkToRecord(basePath string, id model.ID) string {
	return basePath + "/" + url.PathEscape(id.String())
}
