// Package helpers provides test utility functions for the document API.
//
// # Request Builder
//
//	rr := helpers.NewRequest(t, http.MethodGet, "/v1/collections/users/documents").
//	    WithFilter(map[string]interface{}{"op": "eq", "field": "state.name", "value": "Ann"}).
//	    WithQuery("limit", "10").
//	    Do(mux)
//
// # Assertion Helpers
//
//	helpers.AssertStatus(t, rr, http.StatusOK)
//	helpers.AssertProblemDetails(t, rr, http.StatusNotFound, model.ErrCodeNotFound)
//	helpers.AssertDocumentExists(t, store, "users", "u1")
//	helpers.AssertDocumentNotExists(t, store, "users", "u9")
package helpers
