// Package repetition describes how a scheduled task recurs.
//
// A Rule is a closed set of kinds (once, weekly, monthly, yearly, constant gap
// and custom). Recurring kinds carry a Count that bounds how many occurrences
// may still fire. The Next* helpers compute the following due date for a kind;
// they only move dates and never touch the Count. Consuming the budget is a
// separate, explicit step (Count.Consume) owned by the lane queue, so the
// catch-up and fire passes can apply different policies.
package repetition
