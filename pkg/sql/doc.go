// Package sql turns stored query templates into executable SQL.
package sql

/*
Query Syntax

# Overview

Every stored query is written in one of two syntaxes. The syntax is chosen per
query (the "syntax" key in the catalog) and decides how variables are found,
how their types are declared and how values are substituted.

Rendering substitutes literal text. Values are not bound as driver
parameters, so request values are cast to the declared type before rendering
and string values can be screened with libinjection (see injection.go).

# Printf Syntax

Variables are written %(name)T where T declares the type:

	%(name)s    string
	%(id)d      integer
	%(tags)l    list of strings
	%(ids)a     list of integers

Example:

	SELECT * FROM orders
	WHERE customer_id = %(customer_id)d
	  AND status IN (%(statuses)l)

With customer_id=7 and statuses=["open", "held"] this renders

	SELECT * FROM orders
	WHERE customer_id = 7
	  AND status IN ('open', 'held')

Lists render without parentheses, so the SQL supplies them. An empty list
renders NULL. Write %% for a literal percent sign.

# Template Syntax

Queries are text/template documents. Variables are bare identifiers or
fields, optionally tagged with a type prefix:

	{{ name }}  {{ .name }}   string
	{{ int:id }}              integer
	{{ list:tags }}           list of strings
	{{ list:int:ids }}        list of integers

Tags are removed before parsing. Control structures and builtins work as
usual:

	SELECT * FROM orders
	WHERE status IN {{ list:statuses }}
	{{ if int:limit }}LIMIT {{ limit }}{{ end }}

Lists print as tuples: ('open', 'held'), (7,) or (NULL). The trailing comma
of a one element tuple is removed by NormalizeSQL.

A variable's type is decided by searching the SQL for "list:int:name",
"int:name" and "list:name" in that order. Catalog validation rejects queries
where this would disagree with what is written.

# Execution Flow

 1. Cast request values by the prefix of their key (see CastRequestParams).
 2. Render the SQL with RenderSQL.
 3. Normalize whitespace and tuple commas with NormalizeSQL.
 4. Execute on the query's database.
*/
