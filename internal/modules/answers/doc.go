// Package answers reconciles dictionary-bound form answers across two storage
// tiers: typed columns on the subject records (the value store) and the
// extended_data bag on each record (the metadata store).
//
// The structured column is the only value source for a structured binding;
// the bag is the only source of revision metadata. ValueFor and
// StatusEvaluator are the two places that rule is encoded.
package answers
