// Package migrate replicates the institute schema and data from PostgreSQL
// into a MySQL or SQLite database.
//
// # Overview
//
// A run walks an explicit table dependency graph, parents first. For each
// table it:
//
//  1. introspects the source columns and primary key
//  2. translates every column type through the dialect's TypeMapping; types
//     outside the enumeration become FallbackType and are logged
//  3. rewrites defaults (sequences become AUTO_INCREMENT, now() becomes
//     CURRENT_TIMESTAMP, literals are re-quoted)
//  4. drops and recreates the target table
//  5. copies all rows with one multi-row INSERT per batch
//  6. moves the target identity counter past the largest migrated key
//  7. verifies the target row count
//
// A failing table is recorded in the Report and the run continues. Only
// connection and graph errors abort. Re-running replaces every table, so
// repeated runs converge on the same target contents.
//
// # Usage Example
//
//	src := migrate.NewPostgresSource(pgDB, "public")
//	m := migrate.New(src, mysqlDB, migrate.MySQL{}, migrate.DefaultTableGraph(),
//		migrate.WithLogger(logger),
//		migrate.WithRecorder(auditLog),
//	)
//	report, err := m.Run(ctx)
//
// # Table Graph
//
// The graph can also be loaded from YAML:
//
//	tables:
//	  - name: courses
//	  - name: students
//	    depends_on: [users, courses]
package migrate
