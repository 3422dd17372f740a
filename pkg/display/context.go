package display

// Context is the read-only capability handed to every panel render call. It
// is a value: changing the theme or width produces a new Context, so a render
// in progress never observes a half-applied change.
type Context struct {
	theme       Theme
	width       int
	breakpoints Breakpoints
}

// NewContext builds a Context. Empty breakpoints fall back to
// DefaultBreakpoints.
func NewContext(theme Theme, width int, breakpoints Breakpoints) Context {
	if len(breakpoints) == 0 {
		breakpoints = DefaultBreakpoints
	}
	return Context{theme: theme, width: width, breakpoints: breakpoints}
}

// Theme returns the active theme descriptor.
func (c Context) Theme() Theme { return c.theme }

// Width returns the viewport width the breakpoint was derived from.
func (c Context) Width() int { return c.width }

// Breakpoints returns the tier order in use.
func (c Context) Breakpoints() Breakpoints {
	if len(c.breakpoints) == 0 {
		return DefaultBreakpoints
	}
	return c.breakpoints
}

// CurrentBreakpoint returns the tier name for the current width.
func (c Context) CurrentBreakpoint() string {
	return c.Breakpoints().For(c.width)
}

// MinBreakpoint reports whether the current tier is at least name. Unknown
// names never match.
func (c Context) MinBreakpoint(name string) bool {
	want, ok := c.Breakpoints().Rank(name)
	if !ok {
		return false
	}
	cur, _ := c.Breakpoints().Rank(c.CurrentBreakpoint())
	return cur >= want
}

// MaxBreakpoint reports whether the current tier is at most name. Unknown
// names never match.
func (c Context) MaxBreakpoint(name string) bool {
	want, ok := c.Breakpoints().Rank(name)
	if !ok {
		return false
	}
	cur, _ := c.Breakpoints().Rank(c.CurrentBreakpoint())
	return cur <= want
}

// WithTheme returns a copy using theme.
func (c Context) WithTheme(theme Theme) Context {
	c.theme = theme
	return c
}

// WithWidth returns a copy recomputed for width.
func (c Context) WithWidth(width int) Context {
	if width < 0 {
		width = 0
	}
	c.width = width
	return c
}
