// Package io provides JSON import and export of diagram models.
//
// # JSON Format
//
// A model file has three required top-level keys:
//
//	{
//	  "caseStudy": "A library lends books to members...",
//	  "entities": [
//	    {
//	      "id": "k3j9x",
//	      "name": "Book",
//	      "position": {"x": 120, "y": 80},
//	      "attributes": [
//	        {"name": "isbn", "isPK": true, "category": "identifier"},
//	        {"name": "title", "isPK": false, "category": "descriptive"}
//	      ]
//	    }
//	  ],
//	  "relationships": [
//	    {"id": "r1", "fromId": "m2", "toId": "k3j9x", "cardinality": "1:N",
//	     "name": "borrows", "controlPointOffset": {"x": 0, "y": 0}}
//	  ]
//	}
//
// Entities may also carry "isCollapsed" and "data" (occurrence rows keyed by
// attribute name).
//
// # Import
//
// [ReadModel] and [ImportModel] reject the whole file when any of the three
// keys is missing or null, when the JSON is malformed, or when the decoded
// model breaks a structural rule (duplicate ids, dangling relationship
// endpoints, unknown categories or cardinalities). Every rejection carries
// [errors.ErrCodeInvalidModel] or [errors.ErrCodeInvalidFormat]; nothing is
// partially imported.
//
// # Export
//
// [WriteModel] and [ExportModel] write indented JSON that [ReadModel] accepts
// unchanged.
package io
