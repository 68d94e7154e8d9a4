// Package api exposes the analytics aggregator over HTTP.
//
// Routes (all GET, JSON responses with camelCase keys):
//
//	/api/analytics/dashboard
//	/api/analytics/registrations/monthly?months=6
//	/api/analytics/revenue/monthly?months=12
//	/api/analytics/students
//	/api/analytics/financial
//	/api/analytics/courses
//	/api/analytics/crm
//	/api/analytics/hrm
//
// Every report except hrm accepts from and to (YYYY-MM-DD, inclusive).
// Invalid parameters return 400 and failures 500, both as {"error": "..."}.
package api
