package validator

import "testing"

type searchInput struct {
	Query     string `validate:"notblank,max=1000"`
	MeetingID string `validate:"omitempty,uuid"`
}

func TestValidate_NotBlank(t *testing.T) {
	v := New()

	cases := []struct {
		name    string
		in      searchInput
		wantErr bool
	}{
		{name: "valid", in: searchInput{Query: "budget"}},
		{name: "empty", in: searchInput{Query: ""}, wantErr: true},
		{name: "whitespace", in: searchInput{Query: "   \t"}, wantErr: true},
		{name: "bad uuid", in: searchInput{Query: "budget", MeetingID: "m1"}, wantErr: true},
		{name: "uuid", in: searchInput{Query: "budget", MeetingID: "8a0f4a6e-8a8e-4d6a-9e8e-0d5c1f1f2a3b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.in)
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
