// Package intent classifies portfolio questions into an intent label and a
// retrieval route.
//
// Classification runs ordered keyword rules first. When no rule reaches the
// configured confidence threshold, a language model is asked for a label under
// a short timeout. Classification never fails: a model error or timeout
// yields the hybrid intent routed to both retrieval paths.
package intent
