/*
Package template renders prompt text with ${name} placeholders.

A Template is parsed once and rendered many times:

	t := template.Must(template.Parse("Framework: **${framework}**"))
	text, err := t.Render(map[string]string{"framework": "REACT"})

Rendering is a single pass. Substituted values are never expanded again, so
user input containing ${...} reaches the model verbatim. A placeholder
without a value fails the render with *UndefinedVariableError.

Only ${name} is recognized, where name matches [A-Za-z_][A-Za-z0-9_]*. Any
other use of $ or braces is literal text, which keeps JSX such as
style={{ color: 'red' }} intact.

Templates are immutable and safe for concurrent use.
*/
package template
