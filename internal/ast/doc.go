// Package ast holds the syntax tree of contracts and a reader for the
// contract language's S-expression surface.
//
// A full parser and type-checker is an external collaborator; Parser is
// the boundary it plugs into. The Reader here recognizes every lexical
// form (integers, u-prefixed integers, buffers, both string kinds,
// principals, contract and trait references, brace tuples) and keeps
// comments, which carry check-checker annotations. It performs no type
// checking beyond literal validity.
package ast
