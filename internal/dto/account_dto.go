package dto

// AccountDeleteRequest controls what the account deletion removes.
type AccountDeleteRequest struct {
	DeleteAllData  bool `json:"deleteAllData"`
	DeleteAuthUser bool `json:"deleteAuthUser"`
	Confirm        bool `json:"confirm"`
}

// AccountDeleteResponse reports what the cascade removed. FailedThreads lists threads
// that could not be processed after retries.
type AccountDeleteResponse struct {
	ReviewsDeleted  int64    `json:"reviewsDeleted"`
	ThreadsDetached int      `json:"threadsDetached"`
	FailedThreads   []string `json:"failedThreads,omitempty"`
	ProfileDeleted  bool     `json:"profileDeleted"`
	AuthUserDeleted bool     `json:"authUserDeleted"`
}
