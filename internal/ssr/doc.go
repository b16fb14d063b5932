// Package ssr serves server-rendered pages. A Holder carries the current
// renderer, the Gate answers with a placeholder until one is installed, and
// the Dispatcher renders every request that reaches it.
package ssr
