// Package schema compiles CUE resource definitions into
// model.ResourceDefinition values.
//
// A schema file declares every resource under the top-level resources
// struct:
//
//	resources: posts: {
//		list: true, create: true, edit: true, show: true, delete: true
//		perPage: 10
//		sort: {field: "id", order: "DESC"}
//		references: {
//			author_id: {reference: "users", kind: "single", allowEmpty: true}
//			tag_ids:   {reference: "tags", kind: "array"}
//			comments:  {reference: "comments", kind: "many", target: "post_id"}
//		}
//	}
//
// Compile reports structural problems with their CUE position and stops at
// the first one. Validate checks the compiled definitions against each other
// and reports every problem it finds.
package schema
