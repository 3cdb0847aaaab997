// Package storage writes downloaded and decoded images to disk.
//
// Files are written to a temporary name first and renamed into place, so a
// reader never observes a half-written image under its final name. Remove
// deletes both the final and temporary names and is used to clean up after a
// failed download.
//
//	m, err := storage.NewManager("./downloads")
//	path, n, err := m.Save(resp.Body, "image_1.jpg")
package storage
