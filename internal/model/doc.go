// Package model defines the HTTP request/response types and RFC 9457
// problem details used by the docrepo API.
//
// # Problem Details
//
// Errors are reported as application/problem+json:
//
//	{
//	    "type": "https://docrepo.forgo.software/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "Resource with id 'u2' not found in document store 'users'",
//	    "code": 3001
//	}
//
// # Documents
//
// DocumentResponse pairs a stored document with its identifier, since
// stores key documents by id without embedding it.
package model
