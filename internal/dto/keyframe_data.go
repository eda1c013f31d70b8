// KeyFramesData is a paginated response payload for the key-frame list.
package dto

type KeyFramesData struct {
	KeyFrames   []KeyFrameInfo `json:"keyFrames"`
	Directory   string         `json:"directory"`
	Size        int64          `json:"size"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}
