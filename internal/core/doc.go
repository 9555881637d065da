// Package core provides the business logic of the adhesion service: CSV
// imports into adesoes and nova_ligacao, adhesion queries and edits, the
// conferência records, users and the audit log.
//
// It has no HTTP dependencies and is shared by the web server and the
// adesoesctl command.
//
// # Schemas
//
// Destination tables are described by [TableSchema] values held in a
// [Registry]. Each [FieldSpec] names a column and selects its normalizer:
//
//	{Name: "data_adesao", Type: FieldDate, Import: true}
//
// An [ImportType] is bound to one table with [Registry.BindImport].
//
// # Import pipeline
//
// [Service.Import] moves a file through these phases, logging each one:
//
//  1. received: the import type and upload are checked
//  2. parsed: BOM and encoding are fixed, the separator is detected
//  3. validated: headers are normalized and mapped; rows become [Record]s
//  4. ingesting: rows are written in one transaction under the type's [TxPolicy]
//  5. committed or rolled_back, then reported as an [ImportReport]
//
// Under [AllOrNothing] the first failing row rolls the whole file back.
// Under [BestEffort] each row runs in a savepoint and failures are listed
// in the report. The legacy new-connection import generates matrículas
// with a [MatriculaGenerator], which serializes allocation per prefix with
// a transaction-scoped advisory lock.
//
// [Service.PreviewImport] runs the first three phases and reports what an
// import would change.
//
// # Error Handling
//
// Operations return sentinel errors such as [ErrNotFound] and
// [ErrMissingKeyColumn], wrapped with context. [MapError] turns any error
// into a Portuguese [UserMessage] with a support code:
//
//   - IMP: import type, key column, concurrency, communities
//   - FILE: size, format, missing or empty upload
//   - DB: constraint and connection errors
//   - VAL: field values and permissions
//   - AUTH: logins and passwords
//
// # Audit Logging
//
// Imports, adhesion edits and deletes, conferência saves and user changes
// are recorded in audit_log when the Service has an [AuditLog]. Entries
// older than the retention period are purged by [Service.RunAuditRetention].
package core
