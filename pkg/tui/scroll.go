package tui

// ScrollState tracks the transcript viewport's vertical offset. Offset 0
// means the bottom (most recent content) is visible; larger offsets scroll
// up into history.
type ScrollState struct {
	offset        int
	pinned        bool // true once the user scrolls away from the bottom
	prevTotalRows int
}

// NewScrollState returns a scroll state pinned to the bottom.
func NewScrollState() *ScrollState {
	return &ScrollState{}
}

// CurrentMaxScrollOffset is the largest legal offset for totalRows of
// content in a viewport viewHeight rows tall.
func CurrentMaxScrollOffset(totalRows, viewHeight int) int {
	max := totalRows - viewHeight
	if max < 0 {
		return 0
	}
	return max
}

// ScrollPageUp moves the viewport up by one page (viewHeight rows),
// clamping at the top and marking the view as no longer autoscrolling.
func (s *ScrollState) ScrollPageUp(totalRows, viewHeight int) {
	maxOffset := CurrentMaxScrollOffset(totalRows, viewHeight)
	s.offset += viewHeight
	if s.offset > maxOffset {
		s.offset = maxOffset
	}
	s.pinned = s.offset > 0
}

// ScrollPageDown moves the viewport down by one page, re-pinning to the
// bottom (autoscroll resumes) once the offset reaches 0.
func (s *ScrollState) ScrollPageDown(totalRows, viewHeight int) {
	s.offset -= viewHeight
	if s.offset <= 0 {
		s.offset = 0
		s.pinned = false
	} else {
		s.pinned = true
	}
}

// Offset returns the current scroll offset.
func (s *ScrollState) Offset() int {
	return s.offset
}

// Pinned reports whether the user has scrolled away from the bottom; while
// pinned, new streaming content must not yank the view back down.
func (s *ScrollState) Pinned() bool {
	return s.pinned
}

// OnContentGrew is called whenever the transcript gains rows (streaming
// append, new message). If the view is not pinned away from the bottom, it
// autoscrolls to keep following the tail; otherwise the offset grows by the
// same number of new rows so the rows already on screen stay put instead of
// being pushed down by the new content, per the "preserve view when
// scrolled up" rule.
func (s *ScrollState) OnContentGrew(totalRows, viewHeight int) {
	delta := totalRows - s.prevTotalRows
	s.prevTotalRows = totalRows
	if !s.pinned {
		s.offset = 0
		return
	}
	if delta > 0 {
		s.offset += delta
	}
	maxOffset := CurrentMaxScrollOffset(totalRows, viewHeight)
	if s.offset > maxOffset {
		s.offset = maxOffset
	}
}

// OnResize clamps the offset to the new viewport's legal range.
func (s *ScrollState) OnResize(totalRows, viewHeight int) {
	s.prevTotalRows = totalRows
	maxOffset := CurrentMaxScrollOffset(totalRows, viewHeight)
	if s.offset > maxOffset {
		s.offset = maxOffset
	}
	if s.offset == 0 {
		s.pinned = false
	}
}

// VisibleRange returns the half-open [start,end) row range a viewport of
// viewHeight rows should render, given totalRows of wrapped content.
func (s *ScrollState) VisibleRange(totalRows, viewHeight int) (start, end int) {
	maxOffset := CurrentMaxScrollOffset(totalRows, viewHeight)
	offset := s.offset
	if offset > maxOffset {
		offset = maxOffset
	}
	end = totalRows - offset
	start = end - viewHeight
	if start < 0 {
		start = 0
	}
	if end > totalRows {
		end = totalRows
	}
	return start, end
}
