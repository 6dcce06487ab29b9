package fs

// Drive is a mounted volume that can serve as a navigation root.
type Drive struct {
	Name string
	Path string
}
