package faceindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRekognitionAPI scripts each SDK call so the typed-exception
// mapping can be asserted without AWS.
type fakeRekognitionAPI struct {
	describeFn func(*rekognition.DescribeCollectionInput) (*rekognition.DescribeCollectionOutput, error)
	createFn   func(*rekognition.CreateCollectionInput) (*rekognition.CreateCollectionOutput, error)
	indexFn    func(*rekognition.IndexFacesInput) (*rekognition.IndexFacesOutput, error)
	searchFn   func(*rekognition.SearchFacesByImageInput) (*rekognition.SearchFacesByImageOutput, error)
	detectFn   func(*rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error)
	deleteFn   func(*rekognition.DeleteFacesInput) (*rekognition.DeleteFacesOutput, error)
	listFn     func(*rekognition.ListFacesInput) (*rekognition.ListFacesOutput, error)

	createCalls int
	deleteCalls int
}

func (f *fakeRekognitionAPI) DescribeCollection(ctx context.Context, in *rekognition.DescribeCollectionInput, _ ...func(*rekognition.Options)) (*rekognition.DescribeCollectionOutput, error) {
	return f.describeFn(in)
}

func (f *fakeRekognitionAPI) CreateCollection(ctx context.Context, in *rekognition.CreateCollectionInput, _ ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error) {
	f.createCalls++
	return f.createFn(in)
}

func (f *fakeRekognitionAPI) IndexFaces(ctx context.Context, in *rekognition.IndexFacesInput, _ ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error) {
	return f.indexFn(in)
}

func (f *fakeRekognitionAPI) SearchFacesByImage(ctx context.Context, in *rekognition.SearchFacesByImageInput, _ ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error) {
	return f.searchFn(in)
}

func (f *fakeRekognitionAPI) DetectFaces(ctx context.Context, in *rekognition.DetectFacesInput, _ ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	return f.detectFn(in)
}

func (f *fakeRekognitionAPI) DeleteFaces(ctx context.Context, in *rekognition.DeleteFacesInput, _ ...func(*rekognition.Options)) (*rekognition.DeleteFacesOutput, error) {
	f.deleteCalls++
	return f.deleteFn(in)
}

func (f *fakeRekognitionAPI) ListFaces(ctx context.Context, in *rekognition.ListFacesInput, _ ...func(*rekognition.Options)) (*rekognition.ListFacesOutput, error) {
	return f.listFn(in)
}

func newRekognitionClient(api rekognitionAPI) *RekognitionClient {
	return &RekognitionClient{client: api, callTimeout: time.Second}
}

func TestRekognitionEnsureCollection(t *testing.T) {
	t.Parallel()

	t.Run("already exists", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			describeFn: func(*rekognition.DescribeCollectionInput) (*rekognition.DescribeCollectionOutput, error) {
				return &rekognition.DescribeCollectionOutput{}, nil
			},
		}
		require.NoError(t, newRekognitionClient(api).EnsureCollection(context.Background(), "c1"))
		assert.Zero(t, api.createCalls)
	})

	t.Run("created when missing", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			describeFn: func(*rekognition.DescribeCollectionInput) (*rekognition.DescribeCollectionOutput, error) {
				return nil, &types.ResourceNotFoundException{}
			},
			createFn: func(in *rekognition.CreateCollectionInput) (*rekognition.CreateCollectionOutput, error) {
				assert.Equal(t, "c1", aws.ToString(in.CollectionId))
				return &rekognition.CreateCollectionOutput{}, nil
			},
		}
		require.NoError(t, newRekognitionClient(api).EnsureCollection(context.Background(), "c1"))
		assert.Equal(t, 1, api.createCalls)
	})

	t.Run("create race is success", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			describeFn: func(*rekognition.DescribeCollectionInput) (*rekognition.DescribeCollectionOutput, error) {
				return nil, &types.ResourceNotFoundException{}
			},
			createFn: func(*rekognition.CreateCollectionInput) (*rekognition.CreateCollectionOutput, error) {
				return nil, &types.ResourceAlreadyExistsException{}
			},
		}
		require.NoError(t, newRekognitionClient(api).EnsureCollection(context.Background(), "c1"))
	})

	t.Run("other error wraps", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			describeFn: func(*rekognition.DescribeCollectionInput) (*rekognition.DescribeCollectionOutput, error) {
				return nil, errors.New("throttled")
			},
		}
		err := newRekognitionClient(api).EnsureCollection(context.Background(), "c1")
		var backendErr *BackendError
		require.ErrorAs(t, err, &backendErr)
	})
}

func TestRekognitionIndexFace(t *testing.T) {
	t.Parallel()

	t.Run("invalid parameter means no face", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			indexFn: func(*rekognition.IndexFacesInput) (*rekognition.IndexFacesOutput, error) {
				return nil, &types.InvalidParameterException{}
			},
		}
		_, err := newRekognitionClient(api).IndexFace(context.Background(), "c1", Image{Bytes: []byte("img")}, "u1")
		assert.ErrorIs(t, err, ErrNoFaceDetected)
	})

	t.Run("invalid format means invalid image", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			indexFn: func(*rekognition.IndexFacesInput) (*rekognition.IndexFacesOutput, error) {
				return nil, &types.InvalidImageFormatException{}
			},
		}
		_, err := newRekognitionClient(api).IndexFace(context.Background(), "c1", Image{Bytes: []byte("img")}, "u1")
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("empty face records means no face", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			indexFn: func(*rekognition.IndexFacesInput) (*rekognition.IndexFacesOutput, error) {
				return &rekognition.IndexFacesOutput{}, nil
			},
		}
		_, err := newRekognitionClient(api).IndexFace(context.Background(), "c1", Image{Bytes: []byte("img")}, "u1")
		assert.ErrorIs(t, err, ErrNoFaceDetected)
	})

	t.Run("storage reference becomes s3 object", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			indexFn: func(in *rekognition.IndexFacesInput) (*rekognition.IndexFacesOutput, error) {
				require.NotNil(t, in.Image.S3Object)
				assert.Equal(t, "photos", aws.ToString(in.Image.S3Object.Bucket))
				assert.Equal(t, "profiles/u1/p.jpg", aws.ToString(in.Image.S3Object.Name))
				return &rekognition.IndexFacesOutput{
					FaceRecords: []types.FaceRecord{{Face: &types.Face{
						FaceId:          aws.String("f1"),
						ExternalImageId: aws.String("u1"),
						Confidence:      aws.Float32(99.1),
						BoundingBox:     &types.BoundingBox{Width: aws.Float32(0.5)},
					}}},
				}, nil
			},
		}
		face, err := newRekognitionClient(api).IndexFace(context.Background(),
			"c1", Image{Bucket: "photos", Key: "profiles/u1/p.jpg"}, "u1")
		require.NoError(t, err)
		assert.Equal(t, "f1", face.FaceID)
		assert.Equal(t, "u1", face.ExternalID)
		assert.InDelta(t, 99.1, face.Confidence, 0.01)
		assert.InDelta(t, 0.5, face.BoundingBox.Width, 0.001)
	})
}

func TestRekognitionSearchByImage(t *testing.T) {
	t.Parallel()

	t.Run("no usable query face yields empty result", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			searchFn: func(*rekognition.SearchFacesByImageInput) (*rekognition.SearchFacesByImageOutput, error) {
				return nil, &types.InvalidParameterException{}
			},
		}
		matches, err := newRekognitionClient(api).SearchByImage(context.Background(), "c1", []byte("img"), 5, 80)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("missing collection", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			searchFn: func(*rekognition.SearchFacesByImageInput) (*rekognition.SearchFacesByImageOutput, error) {
				return nil, &types.ResourceNotFoundException{}
			},
		}
		_, err := newRekognitionClient(api).SearchByImage(context.Background(), "c1", []byte("img"), 5, 80)
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("maps matches and passes thresholds", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			searchFn: func(in *rekognition.SearchFacesByImageInput) (*rekognition.SearchFacesByImageOutput, error) {
				assert.EqualValues(t, 3, aws.ToInt32(in.MaxFaces))
				assert.InDelta(t, 92.5, aws.ToFloat32(in.FaceMatchThreshold), 0.01)
				return &rekognition.SearchFacesByImageOutput{
					FaceMatches: []types.FaceMatch{{
						Similarity: aws.Float32(96.4),
						Face: &types.Face{
							FaceId:          aws.String("f1"),
							ExternalImageId: aws.String("u1"),
							Confidence:      aws.Float32(99.9),
						},
					}},
				}, nil
			},
		}
		matches, err := newRekognitionClient(api).SearchByImage(context.Background(), "c1", []byte("img"), 3, 92.5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "u1", matches[0].ExternalID)
		assert.InDelta(t, 96.4, matches[0].Similarity, 0.01)
	})
}

func TestRekognitionDetectFaces(t *testing.T) {
	t.Parallel()

	t.Run("maps extended attributes", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			detectFn: func(in *rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error) {
				require.Len(t, in.Attributes, 1)
				assert.Equal(t, types.AttributeAll, in.Attributes[0])
				return &rekognition.DetectFacesOutput{
					FaceDetails: []types.FaceDetail{{
						Confidence:  aws.Float32(98.2),
						BoundingBox: &types.BoundingBox{Width: aws.Float32(0.4), Top: aws.Float32(0.1)},
						AgeRange:    &types.AgeRange{Low: aws.Int32(25), High: aws.Int32(35)},
						Emotions:    []types.Emotion{{Type: types.EmotionNameHappy}},
						Smile:       &types.Smile{Value: true},
						Eyeglasses:  &types.Eyeglasses{Value: false},
						Sunglasses:  &types.Sunglasses{Value: true},
					}},
				}, nil
			},
		}
		faces, err := newRekognitionClient(api).DetectFaces(context.Background(), []byte("img"), true)
		require.NoError(t, err)
		require.Len(t, faces, 1)

		face := faces[0]
		assert.InDelta(t, 98.2, face.Confidence, 0.01)
		require.NotNil(t, face.AgeRange)
		assert.Equal(t, 25, face.AgeRange.Low)
		assert.Equal(t, 35, face.AgeRange.High)
		assert.Equal(t, []string{"HAPPY"}, face.Emotions)
		require.NotNil(t, face.Smile)
		assert.True(t, *face.Smile)
		require.NotNil(t, face.Eyeglasses)
		assert.False(t, *face.Eyeglasses)
		require.NotNil(t, face.Sunglasses)
		assert.True(t, *face.Sunglasses)
	})

	t.Run("default attributes when not requested", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			detectFn: func(in *rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error) {
				require.Len(t, in.Attributes, 1)
				assert.Equal(t, types.AttributeDefault, in.Attributes[0])
				return &rekognition.DetectFacesOutput{
					FaceDetails: []types.FaceDetail{{Confidence: aws.Float32(97)}},
				}, nil
			},
		}
		faces, err := newRekognitionClient(api).DetectFaces(context.Background(), []byte("img"), false)
		require.NoError(t, err)
		require.Len(t, faces, 1)
		assert.Nil(t, faces[0].Smile)
		assert.Nil(t, faces[0].AgeRange)
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			detectFn: func(*rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error) {
				return nil, &types.InvalidImageFormatException{}
			},
		}
		_, err := newRekognitionClient(api).DetectFaces(context.Background(), []byte("img"), false)
		assert.ErrorIs(t, err, ErrInvalidImage)
	})
}

func TestRekognitionDeleteFaces(t *testing.T) {
	t.Parallel()

	t.Run("empty input skips the call", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{}
		n, err := newRekognitionClient(api).DeleteFaces(context.Background(), "c1", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, api.deleteCalls)
	})

	t.Run("missing collection", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			deleteFn: func(*rekognition.DeleteFacesInput) (*rekognition.DeleteFacesOutput, error) {
				return nil, &types.ResourceNotFoundException{}
			},
		}
		_, err := newRekognitionClient(api).DeleteFaces(context.Background(), "c1", []string{"f1"})
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("counts deleted", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			deleteFn: func(in *rekognition.DeleteFacesInput) (*rekognition.DeleteFacesOutput, error) {
				return &rekognition.DeleteFacesOutput{DeletedFaces: in.FaceIds}, nil
			},
		}
		n, err := newRekognitionClient(api).DeleteFaces(context.Background(), "c1", []string{"f1", "f2"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestRekognitionListFaces(t *testing.T) {
	t.Parallel()

	t.Run("paginates", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			listFn: func(in *rekognition.ListFacesInput) (*rekognition.ListFacesOutput, error) {
				if in.NextToken == nil {
					return &rekognition.ListFacesOutput{
						Faces:     []types.Face{{FaceId: aws.String("f1"), ExternalImageId: aws.String("u1")}},
						NextToken: aws.String("page2"),
					}, nil
				}
				return &rekognition.ListFacesOutput{
					Faces: []types.Face{{FaceId: aws.String("f2"), ExternalImageId: aws.String("u2")}},
				}, nil
			},
		}
		faces, err := newRekognitionClient(api).ListFaces(context.Background(), "c1")
		require.NoError(t, err)
		require.Len(t, faces, 2)
		assert.Equal(t, "f1", faces[0].FaceID)
		assert.Equal(t, "f2", faces[1].FaceID)
	})

	t.Run("missing collection", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			listFn: func(*rekognition.ListFacesInput) (*rekognition.ListFacesOutput, error) {
				return nil, &types.ResourceNotFoundException{}
			},
		}
		_, err := newRekognitionClient(api).ListFaces(context.Background(), "c1")
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})
}

func TestRekognitionDescribeCollection(t *testing.T) {
	t.Parallel()

	t.Run("missing collection", func(t *testing.T) {
		t.Parallel()
		api := &fakeRekognitionAPI{
			describeFn: func(*rekognition.DescribeCollectionInput) (*rekognition.DescribeCollectionOutput, error) {
				return nil, &types.ResourceNotFoundException{}
			},
		}
		_, err := newRekognitionClient(api).DescribeCollection(context.Background(), "c1")
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("maps metadata", func(t *testing.T) {
		t.Parallel()
		created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		api := &fakeRekognitionAPI{
			describeFn: func(*rekognition.DescribeCollectionInput) (*rekognition.DescribeCollectionOutput, error) {
				return &rekognition.DescribeCollectionOutput{
					FaceCount:         aws.Int64(42),
					FaceModelVersion:  aws.String("7.0"),
					CollectionARN:     aws.String("arn:aws:rekognition:::collection/c1"),
					CreationTimestamp: &created,
				}, nil
			},
		}
		info, err := newRekognitionClient(api).DescribeCollection(context.Background(), "c1")
		require.NoError(t, err)
		assert.EqualValues(t, 42, info.FaceCount)
		assert.Equal(t, "7.0", info.ModelVersion)
		require.NotNil(t, info.CreatedAt)
		assert.Equal(t, created, *info.CreatedAt)
	})
}
