package session

import "fmt"

// DeployPrompt composes a copy-pasteable prompt asking a coding agent to
// rebuild the prototype in a real project. Pure composition over session
// state; no network call.
func (s *Session) DeployPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf(`I want to rebuild the frontend of %s (%q).

Here is what I want:
%s

Below is the complete target HTML prototype that shows exactly what it should look like. Implement this as a production-quality page in my project, matching the layout, styling, colors, typography, and content as closely as possible. Use Tailwind CSS for styling.

`+"```html\n%s\n```",
		s.capture.URL, s.capture.Title, s.goal, s.extracted)
}
