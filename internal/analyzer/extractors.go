// internal/analyzer/extractors.go
package analyzer

// Selectors and mapping functions for the six snapshot categories. Each
// function receives the array of matched elements and returns plain objects.
const (
	linkSelector = "a[href]:not([href^='javascript:']):not([href^='#'])"
	linkFn       = `els => els.map(el => ({ href: el.href, text: el.innerText.trim().substring(0, 50) }))`

	buttonSelector = "button:not([disabled]), input[type=submit]:not([disabled]), input[type=button]:not([disabled])"
	buttonFn       = `els => els.map(el => ({
		text: el.innerText || el.value || '',
		tag: el.tagName,
		type: el.type || '',
		visible: el.offsetParent !== null
	}))`

	inputSelector = "input:not([disabled]), textarea:not([disabled]), select:not([disabled])"
	inputFn       = `els => els.map(el => ({
		name: el.name || '',
		type: el.type || '',
		placeholder: el.placeholder || '',
		required: el.required || false,
		visible: el.offsetParent !== null
	}))`

	formSelector = "form"
	formFn       = `els => els.map(el => ({ action: el.action, method: el.method, id: el.id }))`

	mediaSelector = "img, video, audio"
	mediaFn       = `els => els.map(el => ({ tag: el.tagName, src: el.src, alt: el.alt || '' }))`

	navSelector = "nav a, [role='navigation'] a, .nav a, .menu a"
	navFn       = `els => els.map(el => ({ href: el.href, text: el.innerText.trim() }))`
)
