package httputil

import "github.com/tidwall/gjson"

// MissingFields does a cheap gjson presence probe over a raw JSON body
// before the caller commits to a strict json.Unmarshal, so malformed or
// incomplete request bodies get a "schema" rejection without constructing
// the target struct (spec.md §4.7 step 1 "schema gate"). A field counts as
// missing when it is absent or its string form is empty; value types are
// not checked here.
func MissingFields(body []byte, fields ...string) []string {
	var missing []string
	for _, f := range fields {
		result := gjson.GetBytes(body, f)
		if !result.Exists() || result.String() == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
