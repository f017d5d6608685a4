// Package provision creates and removes document collections from a YAML
// manifest.
//
// A manifest lists collections with their secondary indexes:
//
//	collections:
//	  - name: users
//	    indexes:
//	      - name: email
//	        fields: [state.email]
//	        unique: true
//	  - name: audit
//
// Ensure is idempotent: collections that already exist are logged and
// skipped, so the same manifest can be applied on every deploy.
package provision
