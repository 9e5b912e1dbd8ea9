// Package query implements the fluent SQL query builder described by the
// "Query Builder" component of the Velox ORM: it accumulates select/from/
// join/where/group/having/order/limit/union clauses as structured data and
// hands that structure to a Grammar (see github.com/syssam/velox/query/grammar)
// for dialect-specific compilation.
//
// A Builder never compiles SQL itself; it only records clauses and the
// bindings that go with them, in the order they were added. Terminal
// operations (Get, First, Insert, Update, Delete, ...) ask the configured
// Grammar to compile the accumulated clauses and then run the result
// through the injected Conn.
package query
