package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAccount(t *testing.T) {
	var gotID string
	mock := &mockClient{
		updateOneFn: func(_ context.Context, sObject, id string, fields map[string]any) error {
			assert.Equal(t, "Account", sObject)
			gotID = id
			assert.Equal(t, "ChIJ1", fields["Google_Place_ID__c"])
			return nil
		},
	}

	err := UpdateAccount(context.Background(), mock, "001A", map[string]any{"Google_Place_ID__c": "ChIJ1"})
	require.NoError(t, err)
	assert.Equal(t, "001A", gotID)
}

func TestUpdateAccount_Validation(t *testing.T) {
	mock := &mockClient{}
	assert.Error(t, UpdateAccount(context.Background(), mock, "", map[string]any{"a": 1}))
	assert.Error(t, UpdateAccount(context.Background(), mock, "001A", nil))
}

func TestUpdateAccount_Error(t *testing.T) {
	mock := &mockClient{
		updateOneFn: func(context.Context, string, string, map[string]any) error {
			return errors.New("FIELD_CUSTOM_VALIDATION_EXCEPTION")
		},
	}
	err := UpdateAccount(context.Background(), mock, "001A", map[string]any{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: update account 001A")
}

func TestMergeAccounts_Batches(t *testing.T) {
	var calls [][]string
	mock := &mockClient{
		mergeFn: func(_ context.Context, sObject, master string, dups []string) error {
			assert.Equal(t, "Account", sObject)
			assert.Equal(t, "001M", master)
			calls = append(calls, dups)
			return nil
		},
	}

	err := MergeAccounts(context.Background(), mock, "001M", []string{"001A", "001B", "001C"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"001A", "001B"}, {"001C"}}, calls)
}

func TestMergeAccounts_NoDuplicates(t *testing.T) {
	called := false
	mock := &mockClient{
		mergeFn: func(context.Context, string, string, []string) error {
			called = true
			return nil
		},
	}
	require.NoError(t, MergeAccounts(context.Background(), mock, "001M", nil))
	assert.False(t, called)
}

func TestMergeAccounts_Errors(t *testing.T) {
	assert.Error(t, MergeAccounts(context.Background(), &mockClient{}, "", []string{"001A"}))
	assert.Error(t, MergeAccounts(context.Background(), &mockClient{}, "001A", []string{"001A"}))

	mock := &mockClient{
		mergeFn: func(context.Context, string, string, []string) error { return errors.New("ENTITY_IS_DELETED") },
	}
	err := MergeAccounts(context.Background(), mock, "001M", []string{"001A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENTITY_IS_DELETED")
}
