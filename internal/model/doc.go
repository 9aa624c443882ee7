// Package model provides the identifier and request types shared by every
// admincache package.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - Ids are normalized to strings at ingestion (NormalizeID)
//   - Records are plain JSON objects that must carry an "id" key
//   - Timestamps on cached data are logical clock values, never wall-clock
//   - All JSON tags use camelCase to match the data-provider wire shape
package model
