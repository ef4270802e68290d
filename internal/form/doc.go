// Package form defines the Submission being built across the steps of the
// monthly report form, together with the typed field paths used to edit it.
//
// The Submission is owned by exactly one editing session until it is
// finalized. All edits go through Set, which only accepts paths that exist in
// the schema below:
//
//	identity.name | identity.phone | identity.email | identity.department | identity.roles
//	period
//	attendance.wfo | attendance.wfh
//	tasks.count | tasks.evidenceLink
//	clients.<i>.name | clients.<i>.services | clients.<i>.satisfaction |
//	clients.<i>.deliverables | clients.<i>.onTime | clients.<i>.escalated
//	learning.<i>.title | learning.<i>.durationMins | learning.<i>.link
//	feedback.company | feedback.hr | feedback.challenges
//
// Indexed paths may address an existing element or the element directly
// after the last one (append). Anything else is rejected, so a stray path
// can never create a malformed nested shape.
package form
