// Package core implements the recombinant upload, bulk delete and download
// operations on top of the CKAN action API.
//
// It is independent of any transport: the web handlers and the admin CLI
// both call the same [Service].
//
// # Upload
//
// [Service.Upload] decodes a workbook, matches every worksheet to a table
// descriptor of the dataset, normalizes rows into typed [Record] values and
// writes them with datastore_upsert. Each record keeps its worksheet row so
// that a datastore rejection can be reported as "Sheet S Row R: cause".
// Anything the uploader can fix is returned as *[BadInputData].
//
// # Bulk delete
//
// [Service.BulkDelete] resolves pasted primary keys one line at a time and
// deletes only after every line resolved to exactly one record and the user
// confirmed.
//
// # Error Handling
//
// Action API failures without a defined fallback propagate unchanged. The
// web layer maps them to user messages with [MapError].
package core
