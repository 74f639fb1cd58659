// Package dag turns a rule's declared inputs into the rules that must run
// first. The Resolver finds the producer of every needed file and splits the
// files each producer owes into binding-consistent requests (the frontier);
// the Validator walks those relationships recursively to reject cycles and
// count the invocations a run would reach.
package dag
