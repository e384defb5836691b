package clip

// FrameCache is the ordered, contiguous window of decoded frames the
// fetcher retains for one clip. Invariants: frames are contiguous in
// frame-number space starting at start; entries are never nil; start >= 0
// once any frame has been cached.
type FrameCache struct {
	start  int
	frames []Frame
}

// Start returns the frame number of the first cached frame. Meaningless
// (but well-defined as 0) when Len() == 0.
func (c *FrameCache) Start() int {
	return c.start
}

// Len returns the number of frames currently cached.
func (c *FrameCache) Len() int {
	return len(c.frames)
}

// Contains reports whether frame n is currently cached.
func (c *FrameCache) Contains(n int) bool {
	return n >= c.start && n < c.start+len(c.frames)
}

// At returns the cached frame for n. The caller must have checked Contains
// first.
func (c *FrameCache) At(n int) Frame {
	return c.frames[n-c.start]
}

// End returns the frame number one past the last cached frame: the next
// frame fetch_frame would append. Equals Start() when empty.
func (c *FrameCache) End() int {
	return c.start + len(c.frames)
}

// PushBack appends the next frame in sequence. The caller is responsible
// for only ever pushing frame number c.End(); insertion order is always
// ascending.
func (c *FrameCache) PushBack(f Frame) {
	c.frames = append(c.frames, f)
}

// PopFront evicts the oldest cached frame and advances start.
func (c *FrameCache) PopFront() {
	c.frames = c.frames[1:]
	c.start++
}

// Clear empties the cache entirely. start is left as-is; callers that need
// to reposition it call Reset.
func (c *FrameCache) Clear() {
	c.frames = nil
}

// Reset empties the cache and repositions start, used when the fetcher
// aligns an empty cache to a fresh frame number.
func (c *FrameCache) Reset(start int) {
	c.frames = c.frames[:0]
	c.start = start
}
