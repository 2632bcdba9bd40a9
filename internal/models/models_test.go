package models

import "testing"

func TestUserValidate(t *testing.T) {
	u := User{ID: 1, WalletAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}
	if err := u.Validate(); err != nil {
		t.Error(err)
	}
	u = User{ID: 1, GitHubUsername: "octocat"}
	if err := u.Validate(); err != nil {
		t.Error(err)
	}
	u = User{ID: 1}
	if err := u.Validate(); err == nil {
		t.Error("user with neither wallet nor github passed validation")
	}
	u = User{WalletAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}
	if err := u.Validate(); err == nil {
		t.Error("user without id passed validation")
	}
}

func TestActivityValidate(t *testing.T) {
	tests := []struct {
		name string
		a    Activity
		ok   bool
	}{
		{"mint", Activity{ID: 1, UserID: 1, Type: ActivityNFTMint}, true},
		{"repo follow", Activity{ID: 1, UserID: 1, Type: ActivityRepoFollow,
			Target: &FollowTarget{Kind: TargetRepository, RepositoryName: "a/b"}}, true},
		{"user follow", Activity{ID: 1, UserID: 1, Type: ActivityUserFollow,
			Target: &FollowTarget{Kind: TargetUser, UserID: 2}}, true},
		{"repo follow without target", Activity{ID: 1, UserID: 1, Type: ActivityRepoFollow}, false},
		{"user follow with repo target", Activity{ID: 1, UserID: 1, Type: ActivityUserFollow,
			Target: &FollowTarget{Kind: TargetRepository, RepositoryName: "a/b"}}, false},
		{"no type", Activity{ID: 1, UserID: 1}, false},
		{"no user", Activity{ID: 1, Type: ActivityNFTMint}, false},
	}
	for _, tt := range tests {
		err := tt.a.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s: passed validation", tt.name)
		}
	}
}
