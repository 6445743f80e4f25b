package bootloader

// Section is a contiguous run of bytes to write at a byte address.
type Section struct {
	Address uint32
	Content []byte
}

// End returns the first byte address after the section.
func (s Section) End() uint32 {
	return s.Address + uint32(len(s.Content))
}

// SectionMerger turns the chunk stream of a hex parser into sections. A chunk is
// appended to the open section when it starts exactly where the section ends and the
// section is still shorter than one page; otherwise it opens a new section.
//
// SectionMerger implements ihex.Handler.
type SectionMerger struct {
	pageSize int
	cur      *Section
	sections []Section
}

// NewSectionMerger creates a merger that stops growing a section once it reaches pageSize.
func NewSectionMerger(pageSize int) *SectionMerger {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &SectionMerger{pageSize: pageSize}
}

// Chunk adds data at address. Empty chunks are ignored and data is copied.
func (m *SectionMerger) Chunk(address uint32, data []byte) {
	if len(data) == 0 {
		return
	}

	if m.cur != nil && m.cur.End() == address && len(m.cur.Content) < m.pageSize {
		m.cur.Content = append(m.cur.Content, data...)
		return
	}

	m.flush()
	m.cur = &Section{Address: address, Content: append([]byte(nil), data...)}
}

// End closes the open section.
func (m *SectionMerger) End() {
	m.flush()
}

// Sections returns the closed sections in the order they were started.
func (m *SectionMerger) Sections() []Section {
	return m.sections
}

func (m *SectionMerger) flush() {
	if m.cur != nil {
		m.sections = append(m.sections, *m.cur)
		m.cur = nil
	}
}
