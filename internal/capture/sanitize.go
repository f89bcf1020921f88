package capture

// sanitizedDOMScript serializes the post-JS DOM from a detached clone,
// dropping subtrees that would put executable code or oversized vector
// markup into downstream prompt text. The live document is untouched.
const sanitizedDOMScript = `(() => {
  const clone = document.documentElement.cloneNode(true);
  for (const selector of ["script", "style", "svg", "noscript", "iframe"]) {
    clone.querySelectorAll(selector).forEach((el) => el.remove());
  }
  return clone.outerHTML;
})()`
