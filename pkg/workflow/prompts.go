package workflow

import (
	"strconv"
	"strings"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph/template"
)

var frameworkRules = map[Framework]string{
	FrameworkReact:  "Generate a React JSX component. Use `className` for CSS classes. Use JSX comments {/* like this */}. Inline styles MUST be objects `style={{ key: 'value' }}`.",
	FrameworkNextJS: "Generate a Next.js React JSX component. Use `className` for CSS classes. Use JSX comments {/* like this */}. Inline styles MUST be objects `style={{ key: 'value' }}`.",
	FrameworkVue:    "Generate a Vue 3 Single File Component. Use HTML comments <!-- ... -->.",
	FrameworkHTML:   "Generate plain HTML. Use `class` for CSS classes. Use HTML comments <!-- ... -->. Inline styles MUST be strings `style=\"key: value;\"`.",
}

var systemInstructionTemplate = template.Must(template.Parse(`You are an expert code generation AI specialized in creating production-ready, beautiful, and functional components. Your mission is to generate high-quality code that works perfectly and looks amazing.

CRITICAL REQUIREMENTS:
- Framework: **${framework}**
- Generate ONLY the component code, no explanations or markdown
- Code must be immediately runnable and functional
- Focus on modern, clean, and professional design
- Use best practices for the selected framework

FRAMEWORK-SPECIFIC RULES:
${rules}

QUALITY STANDARDS:
- Write clean, readable, and well-structured code
- Use modern CSS techniques and responsive design
- Implement proper accessibility features
- Ensure the component is visually appealing
- Use semantic HTML and proper component structure
- Add appropriate hover states and interactions
- Make it mobile-responsive

OUTPUT FORMAT:
- Return ONLY the component code
- No markdown code blocks
- No explanations or comments outside the code
- No wrapper tags like <html> or <body>
- Self-contained component that works immediately`))

// SystemInstruction composes the code generation instruction for framework.
// Unknown frameworks get the HTML rules.
func SystemInstruction(framework Framework) string {
	rules, ok := frameworkRules[framework]
	if !ok {
		rules = frameworkRules[FrameworkHTML]
	}
	return systemInstructionTemplate.MustRender(map[string]string{
		"framework": strings.ToUpper(string(framework)),
		"rules":     rules,
	})
}

var classifierTemplate = template.Must(template.Parse(`You are an intent classifier for an AI coding assistant. Decide whether the user's latest request should be handled as 'code_generation' or 'chat'.
Rules:
- Return EXACTLY one of: code_generation or chat.
- Choose code_generation if the user asks to create, modify, design, implement, or generate code, or if an image is provided for UI to code.
- Otherwise choose chat.

User prompt: ${prompt}
Image provided: ${has_image}`))

func classifierPrompt(prompt string, hasImage bool) string {
	return classifierTemplate.MustRender(map[string]string{
		"prompt":    prompt,
		"has_image": strconv.FormatBool(hasImage),
	})
}
